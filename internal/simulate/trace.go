package simulate

import (
	"sort"

	"github.com/verte-zerg/caffdose/internal/model"
)

// At linearly interpolates the trace at t, clamping outside its range.
func At(trace model.Trace, t float64) float64 {
	n := len(trace)
	if n == 0 {
		return 0
	}
	if t <= trace[0].Time {
		return trace[0].Level
	}
	if t >= trace[n-1].Time {
		return trace[n-1].Level
	}
	i := sort.Search(n, func(i int) bool { return trace[i].Time >= t })
	lo, hi := trace[i-1], trace[i]
	if hi.Time == lo.Time {
		return hi.Level
	}
	frac := (t - lo.Time) / (hi.Time - lo.Time)
	return lo.Level + frac*(hi.Level-lo.Level)
}

// Max returns the highest level in the trace, or 0 when empty.
func Max(trace model.Trace) float64 {
	var out float64
	for _, s := range trace {
		if s.Level > out {
			out = s.Level
		}
	}
	return out
}

// Levels returns the sampled levels within [from, to].
func Levels(trace model.Trace, from, to float64) []float64 {
	out := make([]float64, 0, len(trace))
	for _, s := range trace {
		if s.Time < from || s.Time > to {
			continue
		}
		out = append(out, s.Level)
	}
	return out
}
