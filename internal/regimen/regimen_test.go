package regimen

import (
	"errors"
	"math"
	"testing"

	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/pk"
	"github.com/verte-zerg/caffdose/internal/rootfind"
	"github.com/verte-zerg/caffdose/internal/simulate"
)

const tol = 1e-6

func defaultModel(t *testing.T) pk.Model {
	t.Helper()
	m, err := pk.FromHalfLives(pk.DefaultAbsorptionHalfLife, pk.DefaultEliminationHalfLife)
	if err != nil {
		t.Fatalf("FromHalfLives: %v", err)
	}
	return m
}

func planDefault(t *testing.T, targets model.Targets, window model.Window) model.Regimen {
	t.Helper()
	r, err := NewPlanner(defaultModel(t), Options{}).Plan(targets, window)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return r
}

func TestPlanExampleScenario(t *testing.T) {
	m := defaultModel(t)
	r := planDefault(t, model.Targets{Max: 100, Min: 40}, model.Window{Start: 8, End: 20})

	if got := m.Concentration(r.DFirst, m.TimeToPeak()); math.Abs(got-100) > 100*tol {
		t.Fatalf("lone first dose should peak at 100, got %v", got)
	}
	if math.Abs(r.DFirst-129.15496650) > 1e-6 {
		t.Fatalf("unexpected first dose %v", r.DFirst)
	}
	if r.FirstDoseTime >= 8 {
		t.Fatalf("first dose must precede window start, got %v", r.FirstDoseTime)
	}
	if math.Abs(r.Shift-0.27396892) > 1e-6 {
		t.Fatalf("unexpected shift %v", r.Shift)
	}
	if math.Abs(r.FirstInterval-9.21509828) > 1e-6 {
		t.Fatalf("unexpected first interval %v", r.FirstInterval)
	}
	if math.Abs(r.SubsequentInterval-8.94112936) > 1e-6 {
		t.Fatalf("unexpected subsequent interval %v", r.SubsequentInterval)
	}
	if math.Abs(r.DNext-88.34125920) > 1e-5 {
		t.Fatalf("unexpected steady dose %v", r.DNext)
	}
	if r.NextClamped {
		t.Fatalf("steady dose should not be clamped")
	}

	if len(r.Schedule) != 2 {
		t.Fatalf("expected 2 doses, got %d: %+v", len(r.Schedule), r.Schedule)
	}
	last := r.Schedule[1]
	if !last.Adjusted || r.Schedule[0].Adjusted {
		t.Fatalf("only the last dose should be adjusted: %+v", r.Schedule)
	}
	if math.Abs(last.Amount-19.44038631) > 1e-5 {
		t.Fatalf("unexpected corrected dose %v", last.Amount)
	}
	if r.Correction.Skipped || r.Correction.Index != 1 {
		t.Fatalf("unexpected correction %+v", r.Correction)
	}
	if math.Abs(r.Correction.Previous-r.DNext) > 1e-12 {
		t.Fatalf("correction should record the planned amount")
	}

	atStart := simulate.LevelAt(m, r.Schedule, 8)
	if math.Abs(atStart-40) > 40*tol {
		t.Fatalf("level at window start should be 40, got %v", atStart)
	}
	atEnd := simulate.LevelAt(m, r.Schedule, 20)
	if math.Abs(atEnd-40) > 40*tol {
		t.Fatalf("level at window end should be 40, got %v", atEnd)
	}
	if math.Abs(r.Correction.EndLevel-atEnd) > 1e-9 {
		t.Fatalf("end level %v does not match %v", r.Correction.EndLevel, atEnd)
	}
}

func TestTroughConsistency(t *testing.T) {
	m := defaultModel(t)
	for _, targets := range []model.Targets{{Max: 100, Min: 40}, {Max: 200, Min: 20}, {Max: 50, Min: 49}} {
		r := planDefault(t, targets, model.Window{Start: 8, End: 22})
		tUp := r.Shift
		tDown := tUp + r.SubsequentInterval
		if got := m.Concentration(r.DFirst, tUp); math.Abs(got-targets.Min) > targets.Min*tol {
			t.Fatalf("%+v: level at t_up = %v", targets, got)
		}
		if got := m.Concentration(r.DFirst, tDown); math.Abs(got-targets.Min) > targets.Min*tol {
			t.Fatalf("%+v: level at t_down = %v", targets, got)
		}
		if r.SubsequentInterval <= 0 {
			t.Fatalf("%+v: interval must be positive", targets)
		}
		if tUp >= r.TimeToPeak || tDown <= r.TimeToPeak {
			t.Fatalf("%+v: crossings must straddle the peak", targets)
		}
	}
}

func TestScheduleTimesIncreaseAndDosesNonNegative(t *testing.T) {
	r := planDefault(t, model.Targets{Max: 120, Min: 80}, model.Window{Start: 6, End: 30})
	if len(r.Schedule) < 3 {
		t.Fatalf("expected several doses, got %d", len(r.Schedule))
	}
	for i, d := range r.Schedule {
		if d.Amount < 0 {
			t.Fatalf("dose %d is negative: %v", i, d.Amount)
		}
		if i > 0 && d.Time <= r.Schedule[i-1].Time {
			t.Fatalf("dose times must increase: %+v", r.Schedule)
		}
	}
	if r.Schedule[len(r.Schedule)-1].Time > 30+1e-9 {
		t.Fatalf("last dose beyond window end")
	}
	if got := r.Schedule[1].Time - r.Schedule[0].Time; math.Abs(got-r.FirstInterval) > 1e-9 {
		t.Fatalf("first gap %v != first interval %v", got, r.FirstInterval)
	}
	if got := r.Schedule[2].Time - r.Schedule[1].Time; math.Abs(got-r.SubsequentInterval) > 1e-9 {
		t.Fatalf("second gap %v != subsequent interval %v", got, r.SubsequentInterval)
	}
}

func TestPlanEmptySchedule(t *testing.T) {
	r := planDefault(t, model.Targets{Max: 100, Min: 40}, model.Window{Start: 8, End: 5})
	if !r.Empty() {
		t.Fatalf("expected empty schedule, got %+v", r.Schedule)
	}
	if r.Correction.Index != -1 {
		t.Fatalf("expected no correction, got %+v", r.Correction)
	}
	trace := simulate.Simulate(defaultModel(t), r.Schedule, simulate.GridFor(r.Window.End, r.SubsequentInterval))
	if simulate.Max(trace) != 0 {
		t.Fatalf("expected all-zero trace")
	}
}

func TestPlanRejectsInvalidTargets(t *testing.T) {
	p := NewPlanner(defaultModel(t), Options{})
	cases := []model.Targets{
		{Max: 40, Min: 40},
		{Max: 40, Min: 60},
		{Max: 0, Min: 0},
		{Max: 100, Min: -1},
		{Max: math.NaN(), Min: 10},
	}
	for _, tc := range cases {
		if _, err := p.Plan(tc, model.Window{Start: 8, End: 20}); !errors.Is(err, ErrInvalidTargets) {
			t.Fatalf("%+v: expected ErrInvalidTargets, got %v", tc, err)
		}
	}
	if _, err := p.Plan(model.Targets{Max: 100, Min: 40}, model.Window{Start: math.Inf(1), End: 20}); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestPlanZeroTroughIsUnreachable(t *testing.T) {
	_, err := NewPlanner(defaultModel(t), Options{}).Plan(model.Targets{Max: 100, Min: 0}, model.Window{Start: 8, End: 20})
	if !errors.Is(err, rootfind.ErrNoBracket) {
		t.Fatalf("expected ErrNoBracket, got %v", err)
	}
}

func TestPlanTinyTroughExhaustsExpansion(t *testing.T) {
	opts := Options{Expansion: rootfind.Expansion{Factor: 1.5, Cap: 50, MaxTries: 2}}
	_, err := NewPlanner(defaultModel(t), opts).Plan(model.Targets{Max: 100, Min: 1e-6}, model.Window{Start: 8, End: 20})
	if !errors.Is(err, rootfind.ErrNoBracket) {
		t.Fatalf("expected ErrNoBracket, got %v", err)
	}
}

func TestSteadyDoseClamp(t *testing.T) {
	m := defaultModel(t)
	// A large residual makes the raw solution negative.
	dose, raw, err := SteadyDose(m, 10000, 40, 1, 1)
	if err != nil {
		t.Fatalf("SteadyDose: %v", err)
	}
	if raw >= 0 || dose != 0 {
		t.Fatalf("expected clamp to zero, got dose=%v raw=%v", dose, raw)
	}
	if _, _, err := SteadyDose(m, 100, 40, 1, 0); !errors.Is(err, ErrDegenerateResponse) {
		t.Fatalf("expected ErrDegenerateResponse, got %v", err)
	}
}

func TestSecondIntervalCheck(t *testing.T) {
	r := planDefault(t, model.Targets{Max: 100, Min: 40}, model.Window{Start: 8, End: 20})
	si := r.SecondInterval
	if math.Abs(si.Trough-40) > 40*tol {
		t.Fatalf("trough after second dose should be 40, got %v", si.Trough)
	}
	if si.Peak <= si.Trough {
		t.Fatalf("peak %v should exceed trough %v", si.Peak, si.Trough)
	}
	if si.PeakOffset <= 0 || si.PeakOffset >= r.SubsequentInterval {
		t.Fatalf("peak offset %v outside interval", si.PeakOffset)
	}
}

func TestCustomCadence(t *testing.T) {
	opts := Options{Cadence: Cadence{2, 3, 4}}
	r, err := NewPlanner(defaultModel(t), opts).Plan(model.Targets{Max: 100, Min: 40}, model.Window{Start: 8, End: 25})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	gaps := []float64{2, 3, 4, 4}
	for i := 1; i < len(r.Schedule) && i <= len(gaps); i++ {
		got := r.Schedule[i].Time - r.Schedule[i-1].Time
		if math.Abs(got-gaps[i-1]) > 1e-9 {
			t.Fatalf("gap %d = %v, want %v", i, got, gaps[i-1])
		}
	}
}
