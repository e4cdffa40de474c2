package krotov

import (
	"fmt"
	"math"
)

// Verdict is the tagged outcome of a convergence check. The zero value
// means "continue optimizing".
type Verdict struct {
	Converged bool
	// Message is an optional human-readable reason, appended to the
	// result's termination message.
	Message string
}

// Converged returns a verdict that stops the optimization with the given
// reason.
func Converged(message string) Verdict {
	return Verdict{Converged: true, Message: message}
}

// ConvergenceCheck inspects the result accumulated so far (the current
// iteration included) and decides whether the optimization has converged.
type ConvergenceCheck func(r *Result) Verdict

// ValueBelow converges as soon as value(r) drops below limit. The name is
// used in the convergence message.
func ValueBelow(limit float64, value func(r *Result) float64, name string) ConvergenceCheck {
	return func(r *Result) Verdict {
		v := value(r)
		if v < limit {
			return Converged(fmt.Sprintf("%s < %g", name, limit))
		}
		return Verdict{}
	}
}

// DeltaBelow converges when the change of value(r) between two consecutive
// iterations drops below limit in absolute value. The first invocation only
// records the baseline.
func DeltaBelow(limit float64, value func(r *Result) float64, name string) ConvergenceCheck {
	var prev float64
	var havePrev bool
	return func(r *Result) Verdict {
		v := value(r)
		if havePrev && math.Abs(v-prev) < limit {
			return Converged(fmt.Sprintf("|Δ%s| < %g", name, limit))
		}
		prev = v
		havePrev = true
		return Verdict{}
	}
}

// Or combines checks; the first converged verdict wins.
func Or(checks ...ConvergenceCheck) ConvergenceCheck {
	return func(r *Result) Verdict {
		for _, check := range checks {
			if v := check(r); v.Converged {
				return v
			}
		}
		return Verdict{}
	}
}

// AverageInfidelity extracts 1 − (1/N) Σ_k |τ_k|² from the most recent
// iteration, the cost tracked by the square-modulus functional. It returns
// NaN when no overlaps have been recorded or any overlap is undefined.
func AverageInfidelity(r *Result) float64 {
	if len(r.TauVals) == 0 || len(r.TauVals[len(r.TauVals)-1]) == 0 {
		return math.NaN()
	}
	taus := r.TauVals[len(r.TauVals)-1]
	sum := 0.0
	for _, tau := range taus {
		m := real(tau)*real(tau) + imag(tau)*imag(tau)
		if math.IsNaN(m) {
			return math.NaN()
		}
		sum += m
	}
	return 1.0 - sum/float64(len(taus))
}
