package proforma

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/brickfolio/internal/domain"
)

var asOf = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testProperty() *domain.Property {
	return &domain.Property{ID: 42, PortfolioID: 7, Name: "12 Oak St", SquareFeet: 1800}
}

// capRateAssumptions is tuned so year-1 NOI is exactly 70,000 on a
// 1,000,000 purchase: gross 100,000, no vacancy, opex 30,000.
func capRateAssumptions() *domain.AcquisitionAssumptions {
	return &domain.AcquisitionAssumptions{
		ID:              3,
		PropertyID:      42,
		PurchasePrice:   decimal.NewFromInt(1000000),
		ClosingCostPct:  0.02,
		MonthlyRent:     decimal.NewFromFloat(8333.3333333333333),
		VacancyRate:     0,
		MonthlyExpenses: decimal.NewFromInt(2500),
		ExitCapRate:     0.055,
		HoldYears:       10,
		CostOfSalePct:   0.05,
		LTV:             0.7,
		InterestRate:    0.045,
		AmortYears:      30,
		RentGrowth:      0.03,
		ExpenseGrowth:   0.025,
		CapexGrowth:     0.02,
	}
}

func TestCompute_GoingInCapRate(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	result, err := calc.Compute(testProperty(), capRateAssumptions(), asOf)
	require.NoError(t, err)

	assert.InDelta(t, 0.07, result.GoingInCapRate, 1e-6)
	assert.Equal(t, int64(3), result.AcquisitionID)
	assert.Equal(t, asOf, result.GeneratedAt)
}

func TestCompute_DebtMetrics(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	a := capRateAssumptions()

	result, err := calc.Compute(testProperty(), a, asOf)
	require.NoError(t, err)

	require.NotNil(t, result.GoingInDSCR)
	require.NotNil(t, result.GoingInDebtYield)
	require.NotNil(t, result.LoanConstant)
	require.NotNil(t, result.ExitLTV)

	// Debt yield = year-1 NOI / loan amount = 70,000 / 700,000
	assert.InDelta(t, 0.1, *result.GoingInDebtYield, 1e-6)
	assert.Greater(t, *result.GoingInDSCR, 1.0)
	// 30y loan is far from retired after a 10y hold
	assert.Greater(t, *result.ExitLTV, 0.0)
	assert.Less(t, *result.ExitLTV, a.LTV)
}

func TestCompute_AllCashHasNoDebtMetrics(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	a := capRateAssumptions()
	a.LTV = 0

	result, err := calc.Compute(testProperty(), a, asOf)
	require.NoError(t, err)

	assert.Nil(t, result.GoingInDSCR)
	assert.Nil(t, result.GoingInDebtYield)
	assert.Nil(t, result.LoanConstant)
	assert.Nil(t, result.ExitLTV)
	// With no leverage both IRRs collapse to the same series
	assert.InDelta(t, result.UnleveredIRR, result.LeveredIRR, 1e-6)
}

func TestCompute_ExitSaleMath(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	a := capRateAssumptions()

	result, err := calc.Compute(testProperty(), a, asOf)
	require.NoError(t, err)

	// Sale price capitalizes exit-year NOI; it must exceed net proceeds
	// by at least the cost of sale plus the loan payoff
	sale := result.ProjectedSalePrice.InexactFloat64()
	net := result.NetSaleProceeds.InexactFloat64()
	assert.Greater(t, sale, 0.0)
	assert.Less(t, net, sale*(1-a.CostOfSalePct))
}

func TestCompute_LeverageAmplifiesReturns(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	levered, err := calc.Compute(testProperty(), capRateAssumptions(), asOf)
	require.NoError(t, err)

	allCash := capRateAssumptions()
	allCash.LTV = 0
	unlevered, err := calc.Compute(testProperty(), allCash, asOf)
	require.NoError(t, err)

	// Positive spread between cap rate and loan constant means leverage
	// raises the equity IRR
	assert.Greater(t, levered.LeveredIRR, unlevered.LeveredIRR)
	assert.Greater(t, levered.LeveredEM, 1.0)
	assert.Greater(t, levered.AvgLeveredCC, 0.0)
}

func TestCompute_MissingAssumptions(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	_, err := calc.Compute(testProperty(), nil, asOf)
	require.Error(t, err)

	var missing *domain.DataMissingError
	assert.ErrorAs(t, err, &missing)
}

func TestCompute_ValidationFailures(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())

	tests := []struct {
		name   string
		mutate func(*domain.AcquisitionAssumptions)
	}{
		{"non-positive price", func(a *domain.AcquisitionAssumptions) { a.PurchasePrice = decimal.Zero }},
		{"ltv above one", func(a *domain.AcquisitionAssumptions) { a.LTV = 1.2 }},
		{"zero hold", func(a *domain.AcquisitionAssumptions) { a.HoldYears = 0 }},
		{"zero exit cap", func(a *domain.AcquisitionAssumptions) { a.ExitCapRate = 0 }},
		{"rent growth below -100%", func(a *domain.AcquisitionAssumptions) { a.RentGrowth = -1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := capRateAssumptions()
			tt.mutate(a)

			_, err := calc.Compute(testProperty(), a, asOf)
			require.Error(t, err)

			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestCompute_NoConvergenceFailsWholeResult(t *testing.T) {
	calc := NewCalculator(zerolog.Nop())
	a := capRateAssumptions()
	// Deep negative NOI every year including exit: the levered series
	// never turns positive, so the IRR has no root
	a.MonthlyRent = decimal.NewFromInt(100)
	a.MonthlyExpenses = decimal.NewFromInt(5000)
	a.VacancyRate = 0.5

	result, err := calc.Compute(testProperty(), a, asOf)
	require.Error(t, err, "all-negative series must fail, never return a zero IRR")
	assert.Nil(t, result, "no partial result on computation failure")

	var cerr *domain.ComputationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, int64(42), cerr.PropertyID)
}
