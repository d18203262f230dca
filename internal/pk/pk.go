// Package pk implements the one-compartment first-order absorption and
// elimination response used to simulate caffeine levels.
package pk

import (
	"errors"
	"fmt"
	"math"

	"github.com/verte-zerg/caffdose/internal/model"
)

// ErrInvalidRateConstants is returned for non-positive, non-finite or equal
// rate constants.
var ErrInvalidRateConstants = errors.New("invalid rate constants")

// Default half-lives in hours.
const (
	DefaultAbsorptionHalfLife  = 0.5
	DefaultEliminationHalfLife = 5.0
)

// Model evaluates the single-dose response for fixed rate constants.
type Model struct {
	ka float64
	k  float64
}

// New validates the rate constants and returns a model.
func New(ka, k float64) (Model, error) {
	if !finitePositive(ka) || !finitePositive(k) {
		return Model{}, fmt.Errorf("%w: ka=%g k=%g must be positive", ErrInvalidRateConstants, ka, k)
	}
	if ka == k {
		return Model{}, fmt.Errorf("%w: ka and k must differ (both %g)", ErrInvalidRateConstants, ka)
	}
	return Model{ka: ka, k: k}, nil
}

// FromRates builds a model from a RateConstants value.
func FromRates(rc model.RateConstants) (Model, error) {
	return New(rc.Ka, rc.K)
}

// FromHalfLives converts half-lives (hours) to rate constants via ln2/t.
func FromHalfLives(absorption, elimination float64) (Model, error) {
	if !finitePositive(absorption) || !finitePositive(elimination) {
		return Model{}, fmt.Errorf("%w: half-lives must be positive (absorption=%g elimination=%g)", ErrInvalidRateConstants, absorption, elimination)
	}
	return New(RateFromHalfLife(absorption), RateFromHalfLife(elimination))
}

// RateFromHalfLife returns ln2/halfLife.
func RateFromHalfLife(halfLife float64) float64 {
	return math.Ln2 / halfLife
}

// Rates returns the model's rate constants.
func (m Model) Rates() model.RateConstants {
	return model.RateConstants{Ka: m.ka, K: m.k}
}

// Concentration returns the level produced by dose after elapsed hours.
func (m Model) Concentration(dose, elapsed float64) float64 {
	if elapsed < 0 {
		return 0
	}
	return dose * (m.ka / (m.ka - m.k)) * (math.Exp(-m.k*elapsed) - math.Exp(-m.ka*elapsed))
}

// TimeToPeak returns the time at which a single dose peaks.
func (m Model) TimeToPeak() float64 {
	return math.Log(m.ka/m.k) / (m.ka - m.k)
}

// PeakMultiplier is the peak level produced by a unit dose.
func (m Model) PeakMultiplier() float64 {
	return m.Concentration(1, m.TimeToPeak())
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
