// Package rootfind provides a bracketed scalar root solver and a bracket
// expansion helper for monotonic tails.
package rootfind

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoBracket is returned when the endpoints do not straddle a sign change.
	ErrNoBracket = errors.New("no sign change in bracket")
	// ErrNoConvergence is returned when the iteration budget is exhausted.
	ErrNoConvergence = errors.New("root search did not converge")
)

const (
	defaultXTol    = 2e-12
	defaultRTol    = 4 * 2.220446049250313e-16
	defaultMaxIter = 100
)

// Func is a scalar function of one variable.
type Func func(x float64) float64

// Solve finds x in [low, high] with f(x) ≈ 0 using Brent's method.
func Solve(f Func, low, high float64) (float64, error) {
	return brent(f, low, high, defaultXTol, defaultRTol, defaultMaxIter)
}

func brent(f Func, xa, xb, xtol, rtol float64, maxIter int) (float64, error) {
	xpre, xcur := xa, xb
	var xblk, fblk, spre, scur float64

	fpre := f(xpre)
	fcur := f(xcur)
	if !finite(fpre) || !finite(fcur) {
		return 0, fmt.Errorf("%w: non-finite value at [%g, %g]", ErrNoBracket, xa, xb)
	}
	if fpre == 0 {
		return xpre, nil
	}
	if fcur == 0 {
		return xcur, nil
	}
	if math.Signbit(fpre) == math.Signbit(fcur) {
		return 0, fmt.Errorf("%w: f(%g)=%g f(%g)=%g", ErrNoBracket, xa, fpre, xb, fcur)
	}

	for i := 0; i < maxIter; i++ {
		if fpre != 0 && fcur != 0 && math.Signbit(fpre) != math.Signbit(fcur) {
			xblk = xpre
			fblk = fpre
			spre = xcur - xpre
			scur = spre
		}
		if math.Abs(fblk) < math.Abs(fcur) {
			xpre, xcur, xblk = xcur, xblk, xcur
			fpre, fcur, fblk = fcur, fblk, fcur
		}

		delta := (xtol + rtol*math.Abs(xcur)) / 2
		sbis := (xblk - xcur) / 2
		if fcur == 0 || math.Abs(sbis) < delta {
			return xcur, nil
		}

		if math.Abs(spre) > delta && math.Abs(fcur) < math.Abs(fpre) {
			var stry float64
			if xpre == xblk {
				// secant
				stry = -fcur * (xcur - xpre) / (fcur - fpre)
			} else {
				// inverse quadratic
				dpre := (fpre - fcur) / (xpre - xcur)
				dblk := (fblk - fcur) / (xblk - xcur)
				stry = -fcur * (fblk*dblk - fpre*dpre) / (dblk * dpre * (fblk - fpre))
			}
			if 2*math.Abs(stry) < math.Min(math.Abs(spre), 3*math.Abs(sbis)-delta) {
				spre = scur
				scur = stry
			} else {
				spre = sbis
				scur = sbis
			}
		} else {
			spre = sbis
			scur = sbis
		}

		xpre = xcur
		fpre = fcur
		if math.Abs(scur) > delta {
			xcur += scur
		} else if sbis > 0 {
			xcur += delta
		} else {
			xcur -= delta
		}
		fcur = f(xcur)
		if !finite(fcur) {
			return 0, fmt.Errorf("%w: non-finite value at %g", ErrNoConvergence, xcur)
		}
	}
	return 0, fmt.Errorf("%w after %d iterations", ErrNoConvergence, maxIter)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
