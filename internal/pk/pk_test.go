package pk

import (
	"errors"
	"math"
	"testing"
)

func defaultModel(t *testing.T) Model {
	t.Helper()
	m, err := FromHalfLives(DefaultAbsorptionHalfLife, DefaultEliminationHalfLife)
	if err != nil {
		t.Fatalf("FromHalfLives: %v", err)
	}
	return m
}

func TestNewRejectsInvalidRates(t *testing.T) {
	cases := []struct {
		name  string
		ka, k float64
	}{
		{"equal", 0.5, 0.5},
		{"zero ka", 0, 0.1},
		{"negative k", 1, -0.1},
		{"nan", math.NaN(), 0.1},
		{"inf", math.Inf(1), 0.1},
	}
	for _, tc := range cases {
		if _, err := New(tc.ka, tc.k); !errors.Is(err, ErrInvalidRateConstants) {
			t.Fatalf("%s: expected ErrInvalidRateConstants, got %v", tc.name, err)
		}
	}
}

func TestFromHalfLives(t *testing.T) {
	m := defaultModel(t)
	rc := m.Rates()
	if math.Abs(rc.Ka-math.Ln2/0.5) > 1e-12 {
		t.Fatalf("unexpected ka %v", rc.Ka)
	}
	if math.Abs(rc.K-math.Ln2/5) > 1e-12 {
		t.Fatalf("unexpected k %v", rc.K)
	}
	if _, err := FromHalfLives(1, 1); !errors.Is(err, ErrInvalidRateConstants) {
		t.Fatalf("expected equal half-lives to be rejected, got %v", err)
	}
	if _, err := FromHalfLives(0, 5); !errors.Is(err, ErrInvalidRateConstants) {
		t.Fatalf("expected zero half-life to be rejected, got %v", err)
	}
}

func TestConcentrationBeforeDoseIsZero(t *testing.T) {
	m := defaultModel(t)
	if got := m.Concentration(100, -0.5); got != 0 {
		t.Fatalf("expected 0 before administration, got %v", got)
	}
	if got := m.Concentration(100, 0); got != 0 {
		t.Fatalf("expected 0 at administration, got %v", got)
	}
}

func TestTimeToPeakMaximizesResponse(t *testing.T) {
	m := defaultModel(t)
	tmax := m.TimeToPeak()
	if math.Abs(tmax-1.8455) > 1e-3 {
		t.Fatalf("unexpected time to peak %v", tmax)
	}
	peak := m.Concentration(1, tmax)
	for _, dt := range []float64{-0.1, -0.01, 0.01, 0.1} {
		if m.Concentration(1, tmax+dt) > peak {
			t.Fatalf("response at %v exceeds peak", tmax+dt)
		}
	}
	if math.Abs(m.PeakMultiplier()-peak) > 1e-15 {
		t.Fatalf("peak multiplier %v != %v", m.PeakMultiplier(), peak)
	}
}

func TestConcentrationLinearInDose(t *testing.T) {
	m := defaultModel(t)
	unit := m.Concentration(1, 3)
	if got := m.Concentration(250, 3); math.Abs(got-250*unit) > 1e-9 {
		t.Fatalf("expected linear response, got %v want %v", got, 250*unit)
	}
}

func TestMonotonicDecayAfterPeak(t *testing.T) {
	m := defaultModel(t)
	prev := m.Concentration(100, m.TimeToPeak())
	for tt := m.TimeToPeak() + 0.25; tt < 72; tt += 0.25 {
		cur := m.Concentration(100, tt)
		if cur >= prev {
			t.Fatalf("expected strict decay at t=%v: %v >= %v", tt, cur, prev)
		}
		prev = cur
	}
}

func TestAbsorptionSlowerThanElimination(t *testing.T) {
	m, err := New(0.1, 0.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.TimeToPeak() <= 0 {
		t.Fatalf("expected positive time to peak, got %v", m.TimeToPeak())
	}
	if m.Concentration(1, 2) <= 0 {
		t.Fatalf("expected positive response with flip-flop kinetics")
	}
}
