package rootfind

import (
	"fmt"
	"math"
)

// Expansion grows the upper end of a bracket geometrically until the
// function changes sign.
type Expansion struct {
	Factor   float64
	Cap      float64
	MaxTries int
}

// DefaultExpansion grows by 1.5x up to one week, at most 12 times.
func DefaultExpansion() Expansion {
	return Expansion{Factor: 1.5, Cap: 7 * 24, MaxTries: 12}
}

// Bracket returns an upper bound high' >= high such that f(low) and f(high')
// differ in sign. The final growth step may overshoot Cap.
func (e Expansion) Bracket(f Func, low, high float64) (float64, error) {
	if e.Factor <= 1 {
		return 0, fmt.Errorf("expansion factor must be > 1, got %g", e.Factor)
	}
	left := f(low)
	right := f(high)
	tries := 0
	for left*right > 0 && high < e.Cap && tries < e.MaxTries {
		high *= e.Factor
		right = f(high)
		tries++
	}
	if left*right > 0 || math.IsNaN(left*right) {
		return 0, fmt.Errorf("%w: [%g, %g] after %d expansions", ErrNoBracket, low, high, tries)
	}
	return high, nil
}

// Solve expands the bracket and then solves on it.
func (e Expansion) Solve(f Func, low, high float64) (float64, error) {
	hi, err := e.Bracket(f, low, high)
	if err != nil {
		return 0, err
	}
	return Solve(f, low, hi)
}
