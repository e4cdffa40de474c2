package krotov

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestSerialMap(t *testing.T) {
	var order []int
	err := SerialMap(4, func(i int) error {
		order = append(order, i)
		return nil
	})
	if err != nil {
		t.Fatalf("SerialMap failed: %v", err)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending indices", order)
		}
	}

	boom := errors.New("boom")
	calls := 0
	err = SerialMap(4, func(i int) error {
		calls++
		if i == 1 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Errorf("tasks after a failure must not run, got %d calls", calls)
	}
}

func TestConcurrentMap(t *testing.T) {
	var count int64
	err := ConcurrentMap(16, func(i int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("ConcurrentMap failed: %v", err)
	}
	if count != 16 {
		t.Errorf("ran %d tasks, want 16", count)
	}
}

func TestConcurrentMapFirstErrorWins(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	err := ConcurrentMap(4, func(i int) error {
		switch i {
		case 1:
			return errA
		case 3:
			return errB
		}
		return nil
	})
	if !errors.Is(err, errA) {
		t.Errorf("error = %v, want the error of the lowest index", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	seq := MemoryStorage{}.Allocate(3)
	if seq.Len() != 3 {
		t.Fatalf("Len = %d, want 3", seq.Len())
	}
	s := vecState{1, 0}
	seq.Set(1, s)
	if got := seq.Get(1); got.(vecState)[0] != 1 {
		t.Errorf("Get(1) = %v, want the stored state", got)
	}
	if seq.Get(0) != nil {
		t.Errorf("unset slots should be nil")
	}
}
