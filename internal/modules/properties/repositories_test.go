package properties

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/brickfolio/internal/database"
	"github.com/oakline/brickfolio/internal/domain"
)

type testRepos struct {
	properties   *PropertyRepository
	acquisitions *AcquisitionRepository
	proformas    *ProformaRepository
	market       *MarketRepository
	suggestions  *SuggestionRepository
	portfolioID  int64
}

func newTestRepos(t *testing.T) *testRepos {
	t.Helper()
	db, err := database.OpenMemory("portfolio")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Conn().Exec(`INSERT INTO portfolios (name) VALUES ('test')`)
	require.NoError(t, err)
	var portfolioID int64
	require.NoError(t, db.Conn().QueryRow(`SELECT id FROM portfolios WHERE name = 'test'`).Scan(&portfolioID))

	return &testRepos{
		properties:   NewPropertyRepository(db.Conn()),
		acquisitions: NewAcquisitionRepository(db.Conn()),
		proformas:    NewProformaRepository(db.Conn()),
		market:       NewMarketRepository(db.Conn()),
		suggestions:  NewSuggestionRepository(db.Conn()),
		portfolioID:  portfolioID,
	}
}

func testProperty(portfolioID int64) *domain.Property {
	return &domain.Property{
		PortfolioID: portfolioID,
		Name:        "Maple Duplex",
		Address:     "12 Maple St",
		City:        "Columbus",
		State:       "OH",
		Zip:         "43004",
		Type:        domain.PropertyTypeMultiFamily,
		Ownership:   domain.OwnershipOwned,
		Bedrooms:    4,
		Bathrooms:   2.5,
		YearBuilt:   1987,
		SquareFeet:  2400,
		Current: domain.CurrentState{
			Value:              decimal.NewFromInt(800000),
			MonthlyRent:        decimal.NewFromFloat(4700.50),
			MonthlyExpenses:    decimal.NewFromInt(1100),
			VacancyRate:        0.05,
			AnnualTax:          decimal.NewFromInt(9600),
			LoanBalance:        decimal.NewFromInt(420000),
			LoanRate:           0.045,
			LoanRemainingYears: 24,
		},
	}
}

func testAssumptions(propertyID int64) *domain.AcquisitionAssumptions {
	return &domain.AcquisitionAssumptions{
		PropertyID:     propertyID,
		PurchasePrice:  decimal.NewFromInt(700000),
		ClosingCostPct: 0.03,
		MonthlyRent:    decimal.NewFromInt(4200),
		ExitCapRate:    0.055,
		HoldYears:      10,
		CostOfSalePct:  0.06,
		LTV:            0.7,
		InterestRate:   0.05,
		AmortYears:     30,
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	r := newTestRepos(t)

	p := testProperty(r.portfolioID)
	require.NoError(t, r.properties.Create(p))
	require.NotZero(t, p.ID)

	got, err := r.properties.GetByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maple Duplex", got.Name)
	assert.Equal(t, domain.PropertyTypeMultiFamily, got.Type)
	assert.Equal(t, domain.OwnershipOwned, got.Ownership)
	assert.True(t, got.Current.MonthlyRent.Equal(decimal.NewFromFloat(4700.50)), "decimal rent survives the round trip exactly")
	assert.Equal(t, 24, got.Current.LoanRemainingYears)

	list, err := r.properties.ListByPortfolio(r.portfolioID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestPropertyNotFound(t *testing.T) {
	r := newTestRepos(t)

	var nfe *domain.NotFoundError
	_, err := r.properties.GetByID(404)
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "property", nfe.Entity)
}

func TestUpdateCurrentState(t *testing.T) {
	r := newTestRepos(t)

	p := testProperty(r.portfolioID)
	require.NoError(t, r.properties.Create(p))

	state := p.Current
	state.Value = decimal.NewFromInt(850000)
	state.LoanBalance = decimal.NewFromInt(410000)
	require.NoError(t, r.properties.UpdateCurrentState(p.ID, &state))

	got, err := r.properties.GetByID(p.ID)
	require.NoError(t, err)
	assert.True(t, got.Current.Value.Equal(decimal.NewFromInt(850000)))
	assert.True(t, got.Current.LoanBalance.Equal(decimal.NewFromInt(410000)))
}

func TestAcquisitionGenerations(t *testing.T) {
	r := newTestRepos(t)

	p := testProperty(r.portfolioID)
	require.NoError(t, r.properties.Create(p))

	// No generations yet: analysis cannot proceed
	var missing *domain.DataMissingError
	_, err := r.acquisitions.GetLatestByProperty(p.ID)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "acquisition_data", missing.Input)

	first := testAssumptions(p.ID)
	require.NoError(t, r.acquisitions.Append(first))

	second := testAssumptions(p.ID)
	second.PurchasePrice = decimal.NewFromInt(725000)
	require.NoError(t, r.acquisitions.Append(second))

	latest, err := r.acquisitions.GetLatestByProperty(p.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.True(t, latest.PurchasePrice.Equal(decimal.NewFromInt(725000)))

	all, err := r.acquisitions.ListByProperty(p.ID)
	require.NoError(t, err)
	require.Len(t, all, 2, "generations are appended, never replaced")
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestAcquisitionAppend_RejectsInvalid(t *testing.T) {
	r := newTestRepos(t)

	p := testProperty(r.portfolioID)
	require.NoError(t, r.properties.Create(p))

	bad := testAssumptions(p.ID)
	bad.PurchasePrice = decimal.Zero

	var verr *domain.ValidationError
	assert.ErrorAs(t, r.acquisitions.Append(bad), &verr)
}

func TestProformaReplace(t *testing.T) {
	r := newTestRepos(t)

	p := testProperty(r.portfolioID)
	require.NoError(t, r.properties.Create(p))
	a := testAssumptions(p.ID)
	require.NoError(t, r.acquisitions.Append(a))

	// Nothing computed yet
	got, err := r.proformas.GetByProperty(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	dscr := 1.31
	pf := &domain.ProformaResult{
		PropertyID:         p.ID,
		AcquisitionID:      a.ID,
		HoldYears:          10,
		GoingInCapRate:     0.062,
		Year1OpExRatio:     0.38,
		GoingInDSCR:        &dscr,
		UnleveredIRR:       0.081,
		LeveredIRR:         0.124,
		ProjectedSalePrice: decimal.NewFromInt(910000),
		NetSaleProceeds:    decimal.NewFromFloat(412345.67),
		GeneratedAt:        time.Now().UTC(),
	}
	require.NoError(t, r.proformas.Replace(pf))

	pf.LeveredIRR = 0.131
	require.NoError(t, r.proformas.Replace(pf), "replace is idempotent per property")

	got, err = r.proformas.GetByProperty(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.AcquisitionID)
	assert.InDelta(t, 0.131, got.LeveredIRR, 1e-9)
	require.NotNil(t, got.GoingInDSCR)
	assert.InDelta(t, 1.31, *got.GoingInDSCR, 1e-9)
	assert.Nil(t, got.LoanConstant)
	assert.True(t, got.NetSaleProceeds.Equal(decimal.NewFromFloat(412345.67)))

	byPortfolio, err := r.proformas.MapByPortfolio(r.portfolioID)
	require.NoError(t, err)
	require.Len(t, byPortfolio, 1)
	assert.InDelta(t, 0.131, byPortfolio[p.ID].LeveredIRR, 1e-9)
}

func TestMarketSnapshots(t *testing.T) {
	r := newTestRepos(t)

	p := testProperty(r.portfolioID)
	require.NoError(t, r.properties.Create(p))

	got, err := r.market.GetLatestByProperty(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "no snapshot is not an error")

	older := &domain.MarketSnapshot{
		PropertyID:    p.ID,
		Region:        "columbus-oh",
		MedianRentPSF: 35.0,
		MedianSalePSF: 510.0,
		MedianCapRate: 0.058,
		CapturedAt:    time.Now().UTC().Add(-48 * time.Hour),
	}
	require.NoError(t, r.market.Append(older))

	newer := &domain.MarketSnapshot{
		PropertyID:    p.ID,
		Region:        "columbus-oh",
		MedianRentPSF: 37.0,
		MedianSalePSF: 540.0,
		MedianCapRate: 0.056,
		CapturedAt:    time.Now().UTC(),
	}
	require.NoError(t, r.market.Append(newer))

	got, err = r.market.GetLatestByProperty(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)
	assert.InDelta(t, 37.0, got.MedianRentPSF, 1e-9)
}

func TestSuggestionHistory(t *testing.T) {
	r := newTestRepos(t)

	p := testProperty(r.portfolioID)
	require.NoError(t, r.properties.Create(p))

	latest, err := r.suggestions.Latest(p.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Now().UTC().Add(-time.Hour)
	for i, action := range []domain.SuggestionAction{domain.ActionHold, domain.ActionHold, domain.ActionRefinance} {
		s := &domain.Suggestion{
			ID:          uuid.NewString(),
			PropertyID:  p.ID,
			Action:      action,
			Score:       -0.1 * float64(i),
			Confidence:  0.8,
			Summary:     "test",
			GeneratedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, r.suggestions.Append(s))
	}

	history, err := r.suggestions.ListByProperty(p.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionRefinance, history[0].Action, "newest first")

	capped, err := r.suggestions.ListByProperty(p.ID, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)

	latest, err = r.suggestions.Latest(p.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.ActionRefinance, latest.Action)
}

func TestDeleteCascades(t *testing.T) {
	r := newTestRepos(t)

	p := testProperty(r.portfolioID)
	require.NoError(t, r.properties.Create(p))
	a := testAssumptions(p.ID)
	require.NoError(t, r.acquisitions.Append(a))

	require.NoError(t, r.properties.Delete(p.ID))

	var missing *domain.DataMissingError
	_, err := r.acquisitions.GetLatestByProperty(p.ID)
	assert.ErrorAs(t, err, &missing, "acquisition rows are removed with the property")
}
