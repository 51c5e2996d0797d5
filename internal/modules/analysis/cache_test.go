package analysis

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/brickfolio/internal/database"
	"github.com/oakline/brickfolio/internal/domain"
)

func newTestCache(t *testing.T) *ProformaCache {
	t.Helper()
	db, err := database.OpenMemory("cache")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return NewProformaCache(db.Conn(), zerolog.Nop())
}

func cacheAssumptions() *domain.AcquisitionAssumptions {
	return &domain.AcquisitionAssumptions{
		ID:             17,
		PropertyID:     3,
		PurchasePrice:  decimal.NewFromInt(700000),
		ClosingCostPct: 0.03,
		MonthlyRent:    decimal.NewFromInt(4200),
		VacancyRate:    0.05,
		ExitCapRate:    0.06,
		HoldYears:      10,
		LTV:            0.65,
		InterestRate:   0.05,
		AmortYears:     30,
	}
}

func TestKey_DependsOnEconomicInputsOnly(t *testing.T) {
	cache := newTestCache(t)

	a := cacheAssumptions()
	k1, err := cache.Key(a)
	require.NoError(t, err)

	// Row identity and timestamps never change the key
	b := cacheAssumptions()
	b.ID = 99
	b.PropertyID = 8
	b.CreatedAt = time.Now()
	k2, err := cache.Key(b)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	// Any economic input does
	c := cacheAssumptions()
	c.InterestRate = 0.051
	k3, err := cache.Key(c)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestCache_RoundTrip(t *testing.T) {
	cache := newTestCache(t)

	key, err := cache.Key(cacheAssumptions())
	require.NoError(t, err)

	got, err := cache.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got, "miss returns nil without error")

	dscr := 1.34
	pf := &domain.ProformaResult{
		PropertyID:         3,
		AcquisitionID:      17,
		HoldYears:          10,
		GoingInCapRate:     0.061,
		GoingInDSCR:        &dscr,
		UnleveredIRR:       0.079,
		LeveredIRR:         0.121,
		ProjectedSalePrice: decimal.NewFromFloat(912345.67),
		NetSaleProceeds:    decimal.NewFromInt(401000),
		GeneratedAt:        time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cache.Put(key, pf))

	got, err = cache.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.PropertyID)
	assert.Equal(t, int64(17), got.AcquisitionID)
	assert.InDelta(t, 0.121, got.LeveredIRR, 1e-12)
	require.NotNil(t, got.GoingInDSCR)
	assert.InDelta(t, 1.34, *got.GoingInDSCR, 1e-12)
	assert.Nil(t, got.LoanConstant)
	assert.True(t, got.ProjectedSalePrice.Equal(decimal.NewFromFloat(912345.67)), "decimals survive the binary encoding exactly")
}

func TestCache_PutOverwrites(t *testing.T) {
	cache := newTestCache(t)

	key, err := cache.Key(cacheAssumptions())
	require.NoError(t, err)

	pf := &domain.ProformaResult{
		PropertyID:         3,
		AcquisitionID:      17,
		LeveredIRR:         0.10,
		ProjectedSalePrice: decimal.NewFromInt(900000),
		NetSaleProceeds:    decimal.NewFromInt(400000),
	}
	require.NoError(t, cache.Put(key, pf))

	pf.LeveredIRR = 0.11
	require.NoError(t, cache.Put(key, pf))

	got, err := cache.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.11, got.LeveredIRR, 1e-12)
}

func TestCache_InvalidateProperty(t *testing.T) {
	cache := newTestCache(t)

	key, err := cache.Key(cacheAssumptions())
	require.NoError(t, err)
	pf := &domain.ProformaResult{
		PropertyID:         3,
		AcquisitionID:      17,
		ProjectedSalePrice: decimal.NewFromInt(900000),
		NetSaleProceeds:    decimal.NewFromInt(400000),
	}
	require.NoError(t, cache.Put(key, pf))

	require.NoError(t, cache.InvalidateProperty(3))

	got, err := cache.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got)
}
