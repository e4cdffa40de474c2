package krotov

// Canonical chi constructors for the standard final-time functionals. Each
// returns the boundary states χ_k = −∂J_T/∂⟨ψ_k(T)| for N objectives with
// target states φ_k and final-time forward states ψ_k(T).

// ChiRe constructs the boundary states for the real-part functional
//
//	J_T,re = 1 − (1/N) Σ_k Re ⟨φ_k|ψ_k(T)⟩,
//
// giving χ_k = (1/2N) φ_k.
func ChiRe(fwStatesT []State, objectives []*Objective, tauVals [][]complex128) ([]State, error) {
	n := len(objectives)
	chis := make([]State, n)
	for k, obj := range objectives {
		if obj.Target == nil {
			return nil, NewErrorf("objective %d has no target state", k).WithComponent("functional")
		}
		chis[k] = obj.Target.Scale(complex(1.0/(2.0*float64(n)), 0))
	}
	return chis, nil
}

// ChiSS constructs the boundary states for the square-modulus functional
//
//	J_T,ss = 1 − (1/N) Σ_k |⟨φ_k|ψ_k(T)⟩|²,
//
// giving χ_k = (1/N) ⟨φ_k|ψ_k(T)⟩ φ_k.
func ChiSS(fwStatesT []State, objectives []*Objective, tauVals [][]complex128) ([]State, error) {
	n := len(objectives)
	chis := make([]State, n)
	for k, obj := range objectives {
		if obj.Target == nil {
			return nil, NewErrorf("objective %d has no target state", k).WithComponent("functional")
		}
		coeff := obj.Target.Overlap(fwStatesT[k]) / complex(float64(n), 0)
		chis[k] = obj.Target.Scale(coeff)
	}
	return chis, nil
}

// ChiSM constructs the boundary states for the square-mean functional
//
//	J_T,sm = 1 − |(1/N) Σ_k ⟨φ_k|ψ_k(T)⟩|²,
//
// giving χ_k = (1/N²) (Σ_l ⟨φ_l|ψ_l(T)⟩) φ_k. Unlike ChiSS this functional
// is sensitive to the relative phases between the objectives.
func ChiSM(fwStatesT []State, objectives []*Objective, tauVals [][]complex128) ([]State, error) {
	n := len(objectives)
	var sum complex128
	for l, obj := range objectives {
		if obj.Target == nil {
			return nil, NewErrorf("objective %d has no target state", l).WithComponent("functional")
		}
		sum += obj.Target.Overlap(fwStatesT[l])
	}
	coeff := sum / complex(float64(n*n), 0)
	chis := make([]State, n)
	for k, obj := range objectives {
		chis[k] = obj.Target.Scale(coeff)
	}
	return chis, nil
}
