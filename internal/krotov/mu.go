package krotov

// DerivativeWrtPulse is the default Mu. It covers generators that are
// linear in their controls (standard Schrödinger and master equations): the
// derivative with respect to a control is the sum of the operators the
// control multiplies. A nil return means the objective's generator does not
// couple to the control at all, in which case its contribution to the
// update vanishes.
func DerivativeWrtPulse(objectives []*Objective, iObj int, pulses []Pulse, mapping []ControlsMapping, iPulse, timeIndex int) Operator {
	gen := objectives[iObj].Generator
	termControls := mapping[iObj][0]
	var ops []Operator
	for i := range gen {
		if termControls[i] == iPulse {
			ops = append(ops, gen[i].Op)
		}
	}
	switch len(ops) {
	case 0:
		return nil
	case 1:
		return ops[0]
	default:
		return sumOperator(ops)
	}
}

// sumOperator applies a sum of operators term by term.
type sumOperator []Operator

func (s sumOperator) Apply(state State) State {
	result := s[0].Apply(state)
	for _, op := range s[1:] {
		result = result.Add(op.Apply(state))
	}
	return result
}

func (s sumOperator) Dagger() Operator {
	out := make(sumOperator, len(s))
	for i, op := range s {
		out[i] = op.Dagger()
	}
	return out
}
