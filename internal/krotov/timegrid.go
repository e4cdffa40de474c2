package krotov

// TimeGrid is an ordered sequence of time points. A grid of N points
// defines N−1 propagation intervals.
type TimeGrid []float64

// UniformTimeGrid returns a grid of n equidistant points covering [t0, t1].
func UniformTimeGrid(t0, t1 float64, n int) TimeGrid {
	tg := make(TimeGrid, n)
	if n == 1 {
		tg[0] = t0
		return tg
	}
	dt := (t1 - t0) / float64(n-1)
	for i := range tg {
		tg[i] = t0 + float64(i)*dt
	}
	tg[n-1] = t1
	return tg
}

// Validate checks that the grid has at least two strictly increasing points.
func (tg TimeGrid) Validate() error {
	if len(tg) < 2 {
		return configError("time grid must contain at least two points, got %d", len(tg))
	}
	for i := 1; i < len(tg); i++ {
		if tg[i] <= tg[i-1] {
			return configError("time grid must be strictly increasing (violated at index %d)", i)
		}
	}
	return nil
}

// Intervals returns the number of propagation intervals.
func (tg TimeGrid) Intervals() int {
	return len(tg) - 1
}

// Dt returns the duration of interval i.
func (tg TimeGrid) Dt(i int) float64 {
	return tg[i+1] - tg[i]
}

// Midpoint returns the midpoint time of interval i.
func (tg TimeGrid) Midpoint(i int) float64 {
	return tg[i] + 0.5*tg.Dt(i)
}
