package dense

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"

	"github.com/willst/krotov/internal/krotov"
)

const hermTol = 1e-12

// assemble sums the evaluated generator into a single dense matrix,
// conjugating the coefficients' operators if requested.
func assemble(gen krotov.EvaluatedGenerator) (*mat.CDense, int, error) {
	if len(gen.Terms) == 0 {
		return nil, 0, errors.New("dense: evaluated generator has no terms")
	}
	var sum *mat.CDense
	n := 0
	for _, term := range gen.Terms {
		op, ok := term.Op.(*Matrix)
		if !ok {
			return nil, 0, fmt.Errorf("dense: operator is %T, not a dense.Matrix", term.Op)
		}
		if sum == nil {
			n = op.Dim()
			sum = mat.NewCDense(n, n, nil)
		} else if op.Dim() != n {
			return nil, 0, fmt.Errorf("dense: operator dimension mismatch: %d vs %d", op.Dim(), n)
		}
		c := complex(term.Coeff, 0)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				sum.Set(i, j, sum.At(i, j)+c*op.At(i, j))
			}
		}
	}
	if gen.Conjugate {
		adj := mat.NewCDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				adj.Set(i, j, cmplx.Conj(sum.At(j, i)))
			}
		}
		sum = adj
	}
	return sum, n, nil
}

// ExpmPropagator propagates two-level systems under the Schrödinger
// equation by exact matrix exponentiation of the Hamiltonian. It only
// supports Hermitian 2×2 generators without dissipation.
type ExpmPropagator struct{}

// Propagate returns exp(∓iH·dt)·state, with the sign flipped for
// backward propagation.
func (ExpmPropagator) Propagate(gen krotov.EvaluatedGenerator, state krotov.State, dt float64, dissipation []krotov.EvaluatedGenerator, backwards bool) (krotov.State, error) {
	if len(dissipation) > 0 {
		return nil, errors.New("dense: expm propagator does not support dissipation terms")
	}
	h, n, err := assemble(gen)
	if err != nil {
		return nil, err
	}
	if n != 2 {
		return nil, fmt.Errorf("dense: expm propagator requires a two-level system, got dimension %d", n)
	}
	a := h.At(0, 0)
	d := h.At(1, 1)
	b := h.At(0, 1)
	c := h.At(1, 0)
	if math.Abs(imag(a)) > hermTol || math.Abs(imag(d)) > hermTol || cmplx.Abs(b-cmplx.Conj(c)) > hermTol {
		return nil, errors.New("dense: expm propagator requires a Hermitian generator")
	}
	v := mustVector(state)
	if len(v) != 2 {
		return nil, fmt.Errorf("dense: state dimension %d does not match two-level generator", len(v))
	}

	// Decompose H = c0·I + h·σ and use
	// exp(-iH dt) = e^{-i c0 dt} (cos(ω dt)·I − i sin(ω dt)·(ĥ·σ)).
	c0 := real(a+d) / 2
	hx := real(b)
	hy := -imag(b)
	hz := real(a-d) / 2
	omega := math.Sqrt(hx*hx + hy*hy + hz*hz)

	sign := -1.0
	if backwards {
		sign = 1.0
	}
	phase := cmplx.Exp(complex(0, sign*c0*dt))
	theta := omega * dt
	cosT := complex(math.Cos(theta), 0)
	if omega == 0 {
		return Vector{phase * v[0], phase * v[1]}, nil
	}
	// k·(ĥ·σ) with k = ±i sin(ω dt)/ω absorbs the normalization of h.
	k := complex(0, sign) * complex(math.Sin(theta)/omega, 0)
	nz := complex(hz, 0)
	nm := complex(hx, -hy)
	np := complex(hx, hy)
	out := Vector{
		(cosT+k*nz)*v[0] + k*nm*v[1],
		k*np*v[0] + (cosT-k*nz)*v[1],
	}
	return out, nil
}

// RK4Propagator integrates the Schrödinger equation dψ/dt = ∓iHψ over
// one time interval using classical fourth-order Runge-Kutta substeps.
// It works for arbitrary dimension but, like the exact propagator, does
// not handle dissipation.
type RK4Propagator struct {
	// Substeps is the number of RK4 steps per interval. Values below
	// one are treated as one.
	Substeps int
}

// Propagate advances the state across one interval of width dt.
func (p RK4Propagator) Propagate(gen krotov.EvaluatedGenerator, state krotov.State, dt float64, dissipation []krotov.EvaluatedGenerator, backwards bool) (krotov.State, error) {
	if len(dissipation) > 0 {
		return nil, errors.New("dense: rk4 propagator does not support dissipation terms")
	}
	h, n, err := assemble(gen)
	if err != nil {
		return nil, err
	}
	v := mustVector(state)
	if len(v) != n {
		return nil, fmt.Errorf("dense: state dimension %d does not match generator dimension %d", len(v), n)
	}

	sign := complex(0, -1)
	if backwards {
		sign = complex(0, 1)
	}
	deriv := func(u Vector) Vector {
		out := make(Vector, n)
		for i := 0; i < n; i++ {
			var sum complex128
			for j := 0; j < n; j++ {
				sum += h.At(i, j) * u[j]
			}
			out[i] = sign * sum
		}
		return out
	}

	steps := p.Substeps
	if steps < 1 {
		steps = 1
	}
	hstep := dt / float64(steps)
	cur := make(Vector, n)
	copy(cur, v)
	tmp := make(Vector, n)
	for s := 0; s < steps; s++ {
		k1 := deriv(cur)
		cmplxs.AddScaledTo(tmp, cur, complex(hstep/2, 0), k1)
		k2 := deriv(tmp)
		cmplxs.AddScaledTo(tmp, cur, complex(hstep/2, 0), k2)
		k3 := deriv(tmp)
		cmplxs.AddScaledTo(tmp, cur, complex(hstep, 0), k3)
		k4 := deriv(tmp)
		next := make(Vector, n)
		copy(next, cur)
		cmplxs.AddScaled(next, complex(hstep/6, 0), k1)
		cmplxs.AddScaled(next, complex(hstep/3, 0), k2)
		cmplxs.AddScaled(next, complex(hstep/3, 0), k3)
		cmplxs.AddScaled(next, complex(hstep/6, 0), k4)
		cur = next
	}
	return cur, nil
}
