package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/brickfolio/internal/domain"
)

func ownedProperty(id int64, value, loanBalance float64) domain.Property {
	return domain.Property{
		ID:          id,
		PortfolioID: 1,
		Ownership:   domain.OwnershipOwned,
		Current: domain.CurrentState{
			Value:       decimal.NewFromFloat(value),
			LoanBalance: decimal.NewFromFloat(loanBalance),
		},
	}
}

func TestRecompute_Totals(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	a := ownedProperty(1, 800000, 500000)
	a.Current.MonthlyRent = decimal.NewFromInt(4000)
	a.Current.MonthlyExpenses = decimal.NewFromInt(1200)
	a.Current.VacancyRate = 0.05
	a.Current.AnnualTax = decimal.NewFromInt(9600)
	a.Current.LoanRate = 0.05
	a.Current.LoanRemainingYears = 20

	b := ownedProperty(2, 400000, 0)
	b.Current.MonthlyRent = decimal.NewFromInt(2500)
	b.Current.MonthlyExpenses = decimal.NewFromInt(600)
	b.Current.AnnualTax = decimal.NewFromInt(4800)

	candidate := domain.Property{ID: 3, PortfolioID: 1, Ownership: domain.OwnershipPotential}

	proformas := map[int64]*domain.ProformaResult{
		1: {PropertyID: 1, LeveredIRR: 0.12},
		2: {PropertyID: 2, LeveredIRR: 0.08},
	}

	s := agg.Recompute(1, []domain.Property{a, b, candidate}, proformas, time.Now())

	assert.Equal(t, 2, s.PropertyCount, "potential properties are excluded")

	require.NotNil(t, s.TotalValue)
	require.NotNil(t, s.TotalDebt)
	require.NotNil(t, s.TotalEquity)
	assert.True(t, s.TotalValue.Equal(decimal.NewFromInt(1200000)))
	assert.True(t, s.TotalDebt.Equal(decimal.NewFromInt(500000)))
	assert.True(t, s.TotalEquity.Equal(decimal.NewFromInt(700000)))

	// NOI A = 48000*0.95 - 14400 - 9600 = 21600; NOI B = 30000 - 7200 - 4800 = 18000
	require.NotNil(t, s.AvgIRRActual)
	assert.InDelta(t, (21600.0/800000+18000.0/400000)/2, *s.AvgIRRActual, 1e-9)

	require.NotNil(t, s.AvgLTV)
	assert.InDelta(t, 500000.0/1200000.0, *s.AvgLTV, 1e-9)

	// Only property A carries debt
	require.NotNil(t, s.AvgDSCR)
	assert.InDelta(t, 0.5455, *s.AvgDSCR, 0.001)

	require.NotNil(t, s.AvgIRRTarget)
	assert.InDelta(t, 0.10, *s.AvgIRRTarget, 1e-9)

	require.NotNil(t, s.VarianceIRR)
	assert.InDelta(t, 0.0004, *s.VarianceIRR, 1e-9)

	require.NotNil(t, s.VarianceNOI)
	assert.InDelta(t, 3240000.0, *s.VarianceNOI, 1e-3)
}

func TestRecompute_EmptyPortfolio(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	s := agg.Recompute(7, nil, nil, time.Now())

	assert.Equal(t, int64(7), s.PortfolioID)
	assert.Equal(t, 0, s.PropertyCount)
	assert.Nil(t, s.TotalValue)
	assert.Nil(t, s.TotalDebt)
	assert.Nil(t, s.TotalEquity)
	assert.Nil(t, s.AvgIRRActual)
	assert.Nil(t, s.AvgIRRTarget)
	assert.Nil(t, s.AvgDSCR)
	assert.Nil(t, s.AvgLTV)
	assert.Nil(t, s.VarianceIRR)
	assert.Nil(t, s.VarianceNOI)
}

func TestRecompute_SingleProperty_ZeroVariance(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	a := ownedProperty(1, 500000, 0)
	a.Current.MonthlyRent = decimal.NewFromInt(3000)

	proformas := map[int64]*domain.ProformaResult{
		1: {PropertyID: 1, LeveredIRR: 0.09},
	}

	s := agg.Recompute(1, []domain.Property{a}, proformas, time.Now())

	require.NotNil(t, s.VarianceIRR)
	assert.Zero(t, *s.VarianceIRR)
	require.NotNil(t, s.VarianceNOI)
	assert.Zero(t, *s.VarianceNOI)
	assert.Nil(t, s.AvgDSCR, "no leveraged properties means no DSCR average")
}

func TestAggregator_LockIsStablePerPortfolio(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	l1 := agg.Lock(1)
	l2 := agg.Lock(1)
	l3 := agg.Lock(2)

	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
}
