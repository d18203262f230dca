package regimen

import (
	"fmt"

	"github.com/verte-zerg/caffdose/internal/model"
)

// Cadence is an ordered list of inter-dose intervals. The interval after
// dose i is Cadence[min(i, len-1)], so the last entry repeats.
type Cadence []float64

// Interval returns the gap following the i-th dose (zero-based).
func (c Cadence) Interval(i int) float64 {
	if len(c) == 0 {
		return 0
	}
	if i >= len(c) {
		i = len(c) - 1
	}
	return c[i]
}

func (c Cadence) validate() error {
	if len(c) == 0 {
		return fmt.Errorf("cadence is empty")
	}
	for i, v := range c {
		if !(v > 0) {
			return fmt.Errorf("cadence interval %d must be > 0, got %g", i, v)
		}
	}
	return nil
}

// BuildSchedule lays doses from first until end (inclusive within tol).
// The first dose is dFirst and every later one dNext.
func BuildSchedule(first, end, dFirst, dNext float64, cadence Cadence, tol float64) (model.Schedule, error) {
	if err := cadence.validate(); err != nil {
		return nil, err
	}
	var sched model.Schedule
	t := first
	for i := 0; t <= end+tol; i++ {
		amount := dNext
		if i == 0 {
			amount = dFirst
		}
		sched = append(sched, model.Dose{Time: t, Amount: amount})
		t += cadence.Interval(i)
	}
	return sched, nil
}
