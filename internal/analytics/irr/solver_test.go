package irr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve_ClosedForm(t *testing.T) {
	// Single outflow -100,000 at period 0, single inflow 150,000 at
	// period 5: rate = (150000/100000)^(1/5) - 1
	flows := []float64{-100000, 0, 0, 0, 0, 150000}

	rate, err := Solve(flows)
	require.NoError(t, err)

	want := math.Pow(1.5, 1.0/5) - 1
	assert.InDelta(t, want, rate, 1e-6)
	assert.InDelta(t, 0.0844717, rate, 1e-6)
}

func TestSolve_RootZeroesNPV(t *testing.T) {
	flows := []float64{-500000, 42000, 43500, 45000, 46500, 620000}

	rate, err := Solve(flows)
	require.NoError(t, err)
	assert.InDelta(t, 0, NPV(rate, flows), Tolerance*10)
}

func TestSolve_LevelAnnuity(t *testing.T) {
	// -1000 followed by ten payments of 150: IRR is the annuity rate,
	// roughly 8.14%
	flows := make([]float64, 11)
	flows[0] = -1000
	for i := 1; i <= 10; i++ {
		flows[i] = 150
	}

	rate, err := Solve(flows)
	require.NoError(t, err)
	assert.InDelta(t, 0.0814, rate, 0.001)
}

func TestSolve_NegativeRate(t *testing.T) {
	// Total inflows below the outlay: the only root is negative
	flows := []float64{-1000, 200, 200, 200, 200}

	rate, err := Solve(flows)
	require.NoError(t, err)
	assert.Less(t, rate, 0.0)
	assert.Greater(t, rate, -1.0)
	assert.InDelta(t, 0, NPV(rate, flows), Tolerance*10)
}

func TestSolve_NoSignChange(t *testing.T) {
	tests := []struct {
		name  string
		flows []float64
	}{
		{"all positive", []float64{100, 200, 300}},
		{"all negative", []float64{-100, -200, -300}},
		{"zeros and positives", []float64{0, 0, 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(tt.flows)
			require.Error(t, err)

			var ncErr *NoConvergenceError
			assert.ErrorAs(t, err, &ncErr)
		})
	}
}

func TestSolve_TooFewFlows(t *testing.T) {
	_, err := Solve([]float64{-100})
	require.Error(t, err)

	var ncErr *NoConvergenceError
	assert.ErrorAs(t, err, &ncErr)
}

func TestNPV(t *testing.T) {
	flows := []float64{-100, 110}
	assert.InDelta(t, 10, NPV(0, flows), 1e-9)
	assert.InDelta(t, 0, NPV(0.1, flows), 1e-9)
}
