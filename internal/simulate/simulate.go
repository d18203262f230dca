// Package simulate superposes single-dose responses into a concentration
// trace.
package simulate

import (
	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/pk"
)

const (
	// DefaultSamples is the trace resolution.
	DefaultSamples = 2400
	// DefaultMargin extends the trace past the last interval so the decay
	// tail stays visible.
	DefaultMargin = 6.0
)

// Grid is a uniform sampling grid, inclusive at both ends.
type Grid struct {
	Start   float64
	Stop    float64
	Samples int
}

// GridFor returns the default grid for a window end and dosing interval.
func GridFor(end, interval float64) Grid {
	return Grid{Start: 0, Stop: end + interval + DefaultMargin, Samples: DefaultSamples}
}

// Times returns the grid points.
func (g Grid) Times() []float64 {
	n := g.Samples
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = g.Start
		return out
	}
	step := (g.Stop - g.Start) / float64(n-1)
	for i := range out {
		out[i] = g.Start + float64(i)*step
	}
	out[n-1] = g.Stop
	return out
}

// Simulate evaluates the superposed level of every dose on the grid.
func Simulate(m pk.Model, sched model.Schedule, g Grid) model.Trace {
	times := g.Times()
	trace := make(model.Trace, len(times))
	for i, t := range times {
		trace[i] = model.Sample{Time: t, Level: LevelAt(m, sched, t)}
	}
	return trace
}

// LevelAt returns the exact superposed level at t.
func LevelAt(m pk.Model, sched model.Schedule, t float64) float64 {
	var level float64
	for _, d := range sched {
		level += m.Concentration(d.Amount, t-d.Time)
	}
	return level
}
