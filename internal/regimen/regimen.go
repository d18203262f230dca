// Package regimen derives a dosing schedule that holds the simulated level
// between a trough and a peak target over a time window.
package regimen

import (
	"errors"
	"fmt"
	"math"

	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/pk"
	"github.com/verte-zerg/caffdose/internal/rootfind"
)

var (
	// ErrInvalidTargets is returned when Min >= Max or a target is negative.
	ErrInvalidTargets = errors.New("invalid targets")
	// ErrInvalidWindow is returned for non-finite window bounds.
	ErrInvalidWindow = errors.New("invalid window")
	// ErrDegenerateResponse is returned when the unit response at the
	// subsequent interval is not positive.
	ErrDegenerateResponse = errors.New("non-positive unit response at dosing interval")
	// ErrEmptySchedule marks a schedule with no doses.
	ErrEmptySchedule = errors.New("schedule has no doses")
)

// Options tunes the numeric search. Zero values fall back to defaults.
type Options struct {
	Expansion         rootfind.Expansion
	SearchHigh        float64
	RiseEpsilon       float64
	DecayHorizon      float64
	DiagnosticSamples int
	EndTolerance      float64
	// Cadence overrides the interval sequence; nil means
	// [first interval, subsequent interval].
	Cadence Cadence
}

// DefaultOptions returns the standard search settings.
func DefaultOptions() Options {
	return Options{
		Expansion:         rootfind.DefaultExpansion(),
		SearchHigh:        48,
		RiseEpsilon:       1e-6,
		DecayHorizon:      7 * 24,
		DiagnosticSamples: 1000,
		EndTolerance:      1e-9,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Expansion.Factor == 0 {
		o.Expansion = d.Expansion
	}
	if o.SearchHigh <= 0 {
		o.SearchHigh = d.SearchHigh
	}
	if o.RiseEpsilon <= 0 {
		o.RiseEpsilon = d.RiseEpsilon
	}
	if o.DecayHorizon <= 0 {
		o.DecayHorizon = d.DecayHorizon
	}
	if o.DiagnosticSamples < 2 {
		o.DiagnosticSamples = d.DiagnosticSamples
	}
	if o.EndTolerance <= 0 {
		o.EndTolerance = d.EndTolerance
	}
	return o
}

// Planner computes regimens for one set of rate constants.
type Planner struct {
	model pk.Model
	opts  Options
}

// NewPlanner constructs a planner.
func NewPlanner(m pk.Model, opts Options) *Planner {
	return &Planner{model: m, opts: opts.withDefaults()}
}

// ValidateTargets checks the peak/trough pair.
func ValidateTargets(t model.Targets) error {
	if math.IsNaN(t.Max) || math.IsNaN(t.Min) || math.IsInf(t.Max, 0) || math.IsInf(t.Min, 0) {
		return fmt.Errorf("%w: targets must be finite", ErrInvalidTargets)
	}
	if t.Max <= 0 {
		return fmt.Errorf("%w: max must be > 0, got %g", ErrInvalidTargets, t.Max)
	}
	if t.Min < 0 {
		return fmt.Errorf("%w: min must be >= 0, got %g", ErrInvalidTargets, t.Min)
	}
	if t.Min >= t.Max {
		return fmt.Errorf("%w: min %g must be below max %g", ErrInvalidTargets, t.Min, t.Max)
	}
	return nil
}

// ValidateWindow checks the window bounds are finite. End may precede
// Start; that yields an empty or truncated schedule.
func ValidateWindow(w model.Window) error {
	for _, v := range []float64{w.Start, w.End} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bounds must be finite", ErrInvalidWindow)
		}
	}
	return nil
}

// Plan runs the full pipeline: sizing, intervals, schedule and last-dose
// correction.
func (p *Planner) Plan(targets model.Targets, window model.Window) (model.Regimen, error) {
	if err := ValidateTargets(targets); err != nil {
		return model.Regimen{}, err
	}
	if err := ValidateWindow(window); err != nil {
		return model.Regimen{}, err
	}

	m := p.model
	r := model.Regimen{
		Rates:      m.Rates(),
		Targets:    targets,
		Window:     window,
		TimeToPeak: m.TimeToPeak(),
	}

	r.DFirst = FirstDose(m, targets.Max)

	tUp, err := p.riseCrossing(r.DFirst, targets.Min)
	if err != nil {
		return model.Regimen{}, fmt.Errorf("backward shift: %w", err)
	}
	r.Shift = tUp
	r.FirstDoseTime = window.Start - tUp

	r.FirstInterval, err = p.firstInterval(r.DFirst, targets.Min)
	if err != nil {
		return model.Regimen{}, fmt.Errorf("first interval: %w", err)
	}
	r.SubsequentInterval, err = p.subsequentInterval(r.DFirst, targets.Min, tUp)
	if err != nil {
		return model.Regimen{}, fmt.Errorf("subsequent interval: %w", err)
	}

	dNext, raw, err := SteadyDose(m, r.DFirst, targets.Min, r.FirstInterval, r.SubsequentInterval)
	if err != nil {
		return model.Regimen{}, fmt.Errorf("steady dose: %w", err)
	}
	r.DNext = dNext
	r.NextClamped = raw <= 0

	r.SecondInterval = SecondIntervalCheck(m, r.DFirst, r.DNext, r.FirstInterval, r.SubsequentInterval, p.opts.DiagnosticSamples)

	cadence := p.opts.Cadence
	if len(cadence) == 0 {
		cadence = Cadence{r.FirstInterval, r.SubsequentInterval}
	}
	r.Schedule, err = BuildSchedule(r.FirstDoseTime, window.End, r.DFirst, r.DNext, cadence, p.opts.EndTolerance)
	if err != nil {
		return model.Regimen{}, fmt.Errorf("schedule: %w", err)
	}

	r.Correction, err = CorrectLastDose(m, r.Schedule, targets.Min, window.End)
	if err != nil {
		if !errors.Is(err, ErrEmptySchedule) {
			return model.Regimen{}, fmt.Errorf("last dose: %w", err)
		}
		r.Correction = model.Correction{Index: -1}
	}
	return r, nil
}

// FirstDose scales a single dose so its peak equals peak.
func FirstDose(m pk.Model, peak float64) float64 {
	return peak / m.PeakMultiplier()
}

// riseCrossing finds when a lone dose first rises through level.
func (p *Planner) riseCrossing(dose, level float64) (float64, error) {
	if level <= 0 {
		return 0, nil
	}
	f := crossing(p.model, dose, level)
	return rootfind.Solve(f, p.opts.RiseEpsilon, p.model.TimeToPeak())
}

// firstInterval is the time for a lone dose to decay back to level.
func (p *Planner) firstInterval(dose, level float64) (float64, error) {
	f := crossing(p.model, dose, level)
	return p.opts.Expansion.Solve(f, p.model.TimeToPeak(), p.opts.SearchHigh)
}

func (p *Planner) subsequentInterval(dose, level, tUp float64) (float64, error) {
	f := crossing(p.model, dose, level)
	tDown, err := rootfind.Solve(f, p.model.TimeToPeak(), p.opts.DecayHorizon)
	if err != nil {
		return 0, err
	}
	interval := tDown - tUp
	if interval <= 0 {
		return 0, fmt.Errorf("%w: interval %g", ErrDegenerateResponse, interval)
	}
	return interval, nil
}

// SteadyDose solves D*U + R = trough for the recurring dose, where U is the
// unit response one interval out and R the first dose's residual two
// intervals out. It returns the clamped dose and the raw solution.
func SteadyDose(m pk.Model, dFirst, trough, firstInterval, interval float64) (float64, float64, error) {
	unit := m.Concentration(1, interval)
	if unit <= 0 {
		return 0, 0, fmt.Errorf("%w: U=%g at %g h", ErrDegenerateResponse, unit, interval)
	}
	resid := m.Concentration(dFirst, firstInterval+interval)
	raw := (trough - resid) / unit
	return math.Max(raw, 0), raw, nil
}

// SecondIntervalCheck samples doses 1 and 2 over one subsequent interval
// after the second dose.
func SecondIntervalCheck(m pk.Model, dFirst, dNext, firstInterval, interval float64, samples int) model.SecondInterval {
	level := func(x float64) float64 {
		return m.Concentration(dFirst, firstInterval+x) + m.Concentration(dNext, x)
	}
	out := model.SecondInterval{Peak: math.Inf(-1), Trough: level(interval)}
	for i := 0; i < samples; i++ {
		x := interval * float64(i) / float64(samples-1)
		if v := level(x); v > out.Peak {
			out.Peak = v
			out.PeakOffset = x
		}
	}
	return out
}

func crossing(m pk.Model, dose, level float64) rootfind.Func {
	return func(t float64) float64 {
		return m.Concentration(dose, t) - level
	}
}
