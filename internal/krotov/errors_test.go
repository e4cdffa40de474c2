package krotov

import (
	"errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  NewError("something broke"),
			want: "something broke",
		},
		{
			name: "with component",
			err:  NewError("something broke").WithComponent("chi"),
			want: "chi: something broke",
		},
		{
			name: "with component and operation",
			err:  NewError("something broke").WithComponent("chi").WithOperation("normalize"),
			want: "chi: normalize: something broke",
		},
		{
			name: "wrapped",
			err:  WrapError(errors.New("inner"), "outer"),
			want: "outer: inner",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := WrapErrorf(inner, "context %d", 7)
	if !errors.Is(err, inner) {
		t.Error("wrapped error should match the inner error")
	}
	if WrapError(nil, "nothing") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestIsConfigError(t *testing.T) {
	if !IsConfigError(configError("bad value %d", 3)) {
		t.Error("configError should be recognized")
	}
	if IsConfigError(NewError("other").WithComponent("chi")) {
		t.Error("non-config component should not be recognized")
	}
	if IsConfigError(errors.New("plain")) {
		t.Error("plain errors are not config errors")
	}
}
