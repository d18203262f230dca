package simulate

import (
	"math"
	"testing"

	"github.com/verte-zerg/caffdose/internal/model"
	"github.com/verte-zerg/caffdose/internal/pk"
)

func testModel(t *testing.T) pk.Model {
	t.Helper()
	m, err := pk.FromHalfLives(pk.DefaultAbsorptionHalfLife, pk.DefaultEliminationHalfLife)
	if err != nil {
		t.Fatalf("FromHalfLives: %v", err)
	}
	return m
}

func TestGridTimes(t *testing.T) {
	times := Grid{Start: 0, Stop: 10, Samples: 11}.Times()
	if len(times) != 11 {
		t.Fatalf("expected 11 samples, got %d", len(times))
	}
	if times[0] != 0 || times[10] != 10 || math.Abs(times[3]-3) > 1e-12 {
		t.Fatalf("unexpected grid: %v", times)
	}
	if got := (Grid{Samples: 0}).Times(); got != nil {
		t.Fatalf("expected nil for empty grid")
	}
}

func TestGridFor(t *testing.T) {
	g := GridFor(20, 9)
	if g.Start != 0 || g.Stop != 35 || g.Samples != DefaultSamples {
		t.Fatalf("unexpected grid %+v", g)
	}
}

func TestSimulateSuperposes(t *testing.T) {
	m := testModel(t)
	sched := model.Schedule{{Time: 1, Amount: 100}, {Time: 5, Amount: 50}}
	trace := Simulate(m, sched, Grid{Start: 0, Stop: 12, Samples: 25})
	for _, s := range trace {
		want := m.Concentration(100, s.Time-1) + m.Concentration(50, s.Time-5)
		if math.Abs(s.Level-want) > 1e-9 {
			t.Fatalf("t=%v: got %v want %v", s.Time, s.Level, want)
		}
	}
	if trace[0].Level != 0 || trace[1].Level != 0 {
		t.Fatalf("expected zero before the first dose")
	}
}

func TestSimulateEmptyScheduleIsZero(t *testing.T) {
	m := testModel(t)
	trace := Simulate(m, nil, GridFor(5, 8))
	if len(trace) != DefaultSamples {
		t.Fatalf("expected %d samples, got %d", DefaultSamples, len(trace))
	}
	for _, s := range trace {
		if s.Level != 0 {
			t.Fatalf("expected all-zero trace, got %v at %v", s.Level, s.Time)
		}
	}
	if Max(trace) != 0 {
		t.Fatalf("expected zero max")
	}
}

func TestAtInterpolates(t *testing.T) {
	trace := model.Trace{{Time: 0, Level: 0}, {Time: 1, Level: 10}, {Time: 2, Level: 4}}
	cases := map[float64]float64{
		-1:  0,
		0:   0,
		0.5: 5,
		1:   10,
		1.5: 7,
		3:   4,
	}
	for in, want := range cases {
		if got := At(trace, in); math.Abs(got-want) > 1e-12 {
			t.Fatalf("At(%v) = %v, want %v", in, got, want)
		}
	}
	if At(nil, 1) != 0 {
		t.Fatalf("expected 0 for empty trace")
	}
}

func TestLevels(t *testing.T) {
	trace := model.Trace{{Time: 0, Level: 1}, {Time: 1, Level: 2}, {Time: 2, Level: 3}, {Time: 3, Level: 4}}
	got := Levels(trace, 1, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("unexpected levels %v", got)
	}
	if Max(trace) != 4 {
		t.Fatalf("unexpected max %v", Max(trace))
	}
}
