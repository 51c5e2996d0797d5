// Package irr root-finds the internal rate of return of a cash-flow
// series: the rate r with sum(CF_t / (1+r)^t) = 0.
package irr

import (
	"fmt"
	"math"
)

const (
	// MaxIterations bounds both the Newton loop and the bisection loop,
	// so the solver is guaranteed to terminate.
	MaxIterations = 200
	// Tolerance is the NPV convergence threshold.
	Tolerance = 1e-7

	// Search bounds for the bracketing scan. Rates at or below -100%
	// are meaningless; 300% is far beyond any plausible solution.
	lowerBound = -0.95
	upperBound = 3.0
	gridSteps  = 200
)

// NoConvergenceError reports that no rate satisfied the NPV equation
// within the search bounds and iteration budget. Callers must propagate
// it; substituting a default rate is never valid.
type NoConvergenceError struct {
	Reason string
}

func (e *NoConvergenceError) Error() string {
	return fmt.Sprintf("irr did not converge: %s", e.Reason)
}

// NPV discounts the series at the given rate. Index 0 is period zero
// (the initial outlay, normally negative).
func NPV(rate float64, cashFlows []float64) float64 {
	var npv float64
	for t, cf := range cashFlows {
		npv += cf / math.Pow(1+rate, float64(t))
	}
	return npv
}

// Solve finds the IRR for the ordered per-period series. It runs Newton
// iteration from a conventional starting guess and falls back to a
// bracketed bisection over a rate grid when Newton wanders or stalls.
func Solve(cashFlows []float64) (float64, error) {
	if len(cashFlows) < 2 {
		return 0, &NoConvergenceError{Reason: "need at least two cash flows"}
	}

	hasPositive, hasNegative := false, false
	for _, cf := range cashFlows {
		if cf > 0 {
			hasPositive = true
		}
		if cf < 0 {
			hasNegative = true
		}
	}
	if !hasPositive || !hasNegative {
		return 0, &NoConvergenceError{Reason: "cash flows never change sign, NPV has no root"}
	}

	if rate, ok := newton(cashFlows); ok {
		return rate, nil
	}
	return bisect(cashFlows)
}

// newton runs damped Newton iteration on the NPV function.
func newton(cashFlows []float64) (float64, bool) {
	rate := 0.1
	for i := 0; i < MaxIterations; i++ {
		npv := NPV(rate, cashFlows)
		if math.Abs(npv) < Tolerance {
			return rate, true
		}

		derivative := npvDerivative(rate, cashFlows)
		if derivative == 0 || math.IsNaN(derivative) || math.IsInf(derivative, 0) {
			return 0, false
		}

		next := rate - npv/derivative
		if math.IsNaN(next) || next <= lowerBound || next > upperBound {
			return 0, false
		}
		rate = next
	}
	return 0, false
}

func npvDerivative(rate float64, cashFlows []float64) float64 {
	var d float64
	for t := 1; t < len(cashFlows); t++ {
		d -= float64(t) * cashFlows[t] / math.Pow(1+rate, float64(t+1))
	}
	return d
}

// bisect scans a fixed grid over the search bounds for a sign change,
// then bisects the bracket down to the NPV tolerance.
func bisect(cashFlows []float64) (float64, error) {
	step := (upperBound - lowerBound) / gridSteps

	lo, hi := math.NaN(), math.NaN()
	prevRate := lowerBound
	prevNPV := NPV(prevRate, cashFlows)
	for i := 1; i <= gridSteps; i++ {
		rate := lowerBound + float64(i)*step
		npv := NPV(rate, cashFlows)
		if math.Abs(npv) < Tolerance {
			return rate, nil
		}
		if prevNPV*npv < 0 {
			lo, hi = prevRate, rate
			break
		}
		prevRate, prevNPV = rate, npv
	}
	if math.IsNaN(lo) {
		return 0, &NoConvergenceError{Reason: fmt.Sprintf("no sign change in [%.2f, %.2f]", lowerBound, upperBound)}
	}

	loNPV := NPV(lo, cashFlows)
	for i := 0; i < MaxIterations; i++ {
		mid := (lo + hi) / 2
		midNPV := NPV(mid, cashFlows)
		if math.Abs(midNPV) < Tolerance || (hi-lo)/2 < 1e-12 {
			return mid, nil
		}
		if loNPV*midNPV < 0 {
			hi = mid
		} else {
			lo, loNPV = mid, midNPV
		}
	}
	return 0, &NoConvergenceError{Reason: "iteration budget exhausted"}
}
