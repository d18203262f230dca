package regimen

import (
	"fmt"
	"math"

	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/pk"
	"github.com/verte-zerg/caffdose/internal/simulate"
)

// CorrectLastDose resizes the last dose at or before end so the level at
// end equals trough. The schedule is updated in place. When the last dose
// contributes nothing at end the amount is kept and the correction is
// reported as skipped.
func CorrectLastDose(m pk.Model, sched model.Schedule, trough, end float64) (model.Correction, error) {
	idx := -1
	for i := len(sched) - 1; i >= 0; i-- {
		if sched[i].Time <= end {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Correction{Index: -1}, fmt.Errorf("%w: no dose at or before %g h", ErrEmptySchedule, end)
	}

	var other float64
	for i, d := range sched {
		if i == idx {
			continue
		}
		other += m.Concentration(d.Amount, end-d.Time)
	}

	last := &sched[idx]
	c := model.Correction{
		Index:     idx,
		Previous:  last.Amount,
		Amount:    last.Amount,
		UnitAtEnd: m.Concentration(1, end-last.Time),
	}
	if c.UnitAtEnd > 0 {
		c.Amount = math.Max(0, (trough-other)/c.UnitAtEnd)
		last.Amount = c.Amount
		last.Adjusted = true
	} else {
		c.Skipped = true
	}
	c.EndLevel = simulate.LevelAt(m, sched, end)
	return c, nil
}
