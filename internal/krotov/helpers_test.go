package krotov

import "math"

// vecState is a minimal dense state vector for tests.
type vecState []complex128

func conj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func (v vecState) Overlap(other State) complex128 {
	w := other.(vecState)
	var sum complex128
	for i := range v {
		sum += conj(v[i]) * w[i]
	}
	return sum
}

func (v vecState) Norm() float64 {
	sum := 0.0
	for _, c := range v {
		sum += real(c)*real(c) + imag(c)*imag(c)
	}
	return math.Sqrt(sum)
}

func (v vecState) Scale(c complex128) State {
	out := make(vecState, len(v))
	for i := range v {
		out[i] = c * v[i]
	}
	return out
}

func (v vecState) Add(other State) State {
	w := other.(vecState)
	out := make(vecState, len(v))
	for i := range v {
		out[i] = v[i] + w[i]
	}
	return out
}

func (v vecState) Sub(other State) State {
	w := other.(vecState)
	out := make(vecState, len(v))
	for i := range v {
		out[i] = v[i] - w[i]
	}
	return out
}

func (v vecState) Zero() State {
	return make(vecState, len(v))
}

// matOp is a minimal dense operator for tests.
type matOp [][]complex128

func (m matOp) Apply(s State) State {
	v := s.(vecState)
	out := make(vecState, len(m))
	for i := range m {
		for j := range m[i] {
			out[i] += m[i][j] * v[j]
		}
	}
	return out
}

func (m matOp) Dagger() Operator {
	out := make(matOp, len(m))
	for i := range out {
		out[i] = make([]complex128, len(m))
		for j := range out[i] {
			out[i][j] = conj(m[j][i])
		}
	}
	return out
}

func sigmaX() matOp {
	return matOp{{0, 1}, {1, 0}}
}

func sigmaZ() matOp {
	return matOp{{1, 0}, {0, -1}}
}
