// Package dense provides reference implementations of the optimizer's
// external collaborators for dense complex state vectors and operators:
// the state algebra, dense matrix operators backed by gonum, and
// Schrödinger-equation propagators.
package dense

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"

	"github.com/willst/krotov/internal/krotov"
)

// Vector is a dense complex state vector implementing krotov.State.
type Vector []complex128

// NewVector returns a vector holding a copy of the given amplitudes.
func NewVector(values ...complex128) Vector {
	v := make(Vector, len(values))
	copy(v, values)
	return v
}

// BasisState returns the k-th canonical basis state of the given dimension.
func BasisState(dim, k int) Vector {
	v := make(Vector, dim)
	v[k] = 1
	return v
}

func mustVector(s krotov.State) Vector {
	v, ok := s.(Vector)
	if !ok {
		panic(fmt.Sprintf("dense: state is %T, not a dense.Vector", s))
	}
	return v
}

// Overlap returns the inner product ⟨v|other⟩.
func (v Vector) Overlap(other krotov.State) complex128 {
	w := mustVector(other)
	var sum complex128
	for i := range v {
		sum += cmplx.Conj(v[i]) * w[i]
	}
	return sum
}

// Norm returns the 2-norm of the vector.
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, c := range v {
		sum += real(c)*real(c) + imag(c)*imag(c)
	}
	return math.Sqrt(sum)
}

// Scale returns c·v.
func (v Vector) Scale(c complex128) krotov.State {
	out := make(Vector, len(v))
	cmplxs.ScaleTo(out, c, v)
	return out
}

// Add returns v + other.
func (v Vector) Add(other krotov.State) krotov.State {
	out := make(Vector, len(v))
	cmplxs.AddTo(out, v, mustVector(other))
	return out
}

// Sub returns v − other.
func (v Vector) Sub(other krotov.State) krotov.State {
	out := make(Vector, len(v))
	cmplxs.SubTo(out, v, mustVector(other))
	return out
}

// Zero returns the zero vector of the same dimension.
func (v Vector) Zero() krotov.State {
	return make(Vector, len(v))
}

// Matrix is a dense complex operator backed by a gonum CDense matrix,
// implementing krotov.Operator.
type Matrix struct {
	m *mat.CDense
}

// NewMatrix creates an n×n operator from row-major data.
func NewMatrix(n int, data []complex128) *Matrix {
	return &Matrix{m: mat.NewCDense(n, n, data)}
}

// Dim returns the dimension of the operator.
func (a *Matrix) Dim() int {
	n, _ := a.m.Dims()
	return n
}

// At returns the matrix element at row i, column j.
func (a *Matrix) At(i, j int) complex128 {
	return a.m.At(i, j)
}

// Apply returns the matrix-vector product a·s.
func (a *Matrix) Apply(s krotov.State) krotov.State {
	v := mustVector(s)
	n, _ := a.m.Dims()
	if len(v) != n {
		panic(fmt.Sprintf("dense: operator dimension %d does not match state dimension %d", n, len(v)))
	}
	out := make(Vector, n)
	for i := 0; i < n; i++ {
		var sum complex128
		for j := 0; j < n; j++ {
			sum += a.m.At(i, j) * v[j]
		}
		out[i] = sum
	}
	return out
}

// Dagger returns the Hermitian adjoint of the operator.
func (a *Matrix) Dagger() krotov.Operator {
	n, _ := a.m.Dims()
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, cmplx.Conj(a.m.At(j, i)))
		}
	}
	return &Matrix{m: out}
}

// Identity returns the n-dimensional identity operator.
func Identity(n int) *Matrix {
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return &Matrix{m: out}
}

// PauliX returns the σx operator.
func PauliX() *Matrix {
	return NewMatrix(2, []complex128{0, 1, 1, 0})
}

// PauliY returns the σy operator.
func PauliY() *Matrix {
	return NewMatrix(2, []complex128{0, -1i, 1i, 0})
}

// PauliZ returns the σz operator.
func PauliZ() *Matrix {
	return NewMatrix(2, []complex128{1, 0, 0, -1})
}
