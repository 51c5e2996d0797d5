package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline/brickfolio/internal/analytics/proforma"
	"github.com/oakline/brickfolio/internal/analytics/suggestion"
	"github.com/oakline/brickfolio/internal/database"
	"github.com/oakline/brickfolio/internal/domain"
	"github.com/oakline/brickfolio/internal/modules/analysis"
	"github.com/oakline/brickfolio/internal/modules/portfolio"
	"github.com/oakline/brickfolio/internal/modules/properties"
)

type testEnv struct {
	service      *Service
	properties   *properties.PropertyRepository
	acquisitions *properties.AcquisitionRepository
	proformas    *properties.ProformaRepository
	portfolios   *portfolio.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	portfolioDB, err := database.OpenMemory("portfolio")
	require.NoError(t, err)
	require.NoError(t, portfolioDB.Migrate())
	t.Cleanup(func() { _ = portfolioDB.Close() })

	cacheDB, err := database.OpenMemory("cache")
	require.NoError(t, err)
	require.NoError(t, cacheDB.Migrate())
	t.Cleanup(func() { _ = cacheDB.Close() })

	log := zerolog.Nop()
	env := &testEnv{
		properties:   properties.NewPropertyRepository(portfolioDB.Conn()),
		acquisitions: properties.NewAcquisitionRepository(portfolioDB.Conn()),
		proformas:    properties.NewProformaRepository(portfolioDB.Conn()),
		portfolios:   portfolio.NewRepository(portfolioDB.Conn()),
	}
	analysisService := analysis.NewService(analysis.Deps{
		Properties:   env.properties,
		Acquisitions: env.acquisitions,
		Proformas:    env.proformas,
		Market:       properties.NewMarketRepository(portfolioDB.Conn()),
		Suggestions:  properties.NewSuggestionRepository(portfolioDB.Conn()),
		Portfolios:   env.portfolios,
		Aggregator:   portfolio.NewAggregator(log),
		Calculator:   proforma.NewCalculator(log),
		Engine:       suggestion.NewEngine(suggestion.DefaultConfig(), log),
		Cache:        analysis.NewProformaCache(cacheDB.Conn(), log),
	}, log)
	env.service = NewService(env.portfolios, env.properties, env.acquisitions, analysisService, log)
	return env
}

func ownedDocument() *PropertyDocument {
	return &PropertyDocument{
		OwnershipType: "owned",
		PortfolioName: "Core Residential Portfolio",
		Name:          "Maplewood Apartments",
		Address:       "123 Maple St",
		City:          "Minneapolis",
		State:         "MN",
		Zip:           "55401",
		PropertyType:  "Multi-Family",
		Bedrooms:      8,
		Bathrooms:     4.0,
		YearBuilt:     1985,
		PropertySF:    4500,

		CurrentValue:              decimal.NewFromInt(750000),
		CurrentRent:               decimal.NewFromInt(6200),
		CurrentExpense:            decimal.NewFromInt(3100),
		CurrentVacancyRate:        0.05,
		CurrentTaxAnnual:          decimal.NewFromInt(12000),
		CurrentLoanBalance:        decimal.NewFromInt(420000),
		CurrentLoanRate:           0.045,
		CurrentLoanRemainingYears: 18,

		AcquisitionDate: "2019-08-01",
		PurchasePrice:   decimal.NewFromInt(700000),
		ClosingCosts:    0.02,
		DateOfClose:     "2019-08-01",

		RentAfterPurchase:     decimal.NewFromInt(5800),
		VacancyAfterPurchase:  0.05,
		ExpensesAfterPurchase: decimal.NewFromInt(2900),
		CapexAfterPurchase:    decimal.NewFromInt(8000),
		TaxAssessment:         decimal.NewFromInt(690000),

		ExitCapRate:       0.055,
		HoldYears:         10,
		CostOfSalePct:     0.05,
		LTV:               0.70,
		OriginationFeePct: 0.01,
		InterestRate:      0.045,
		AmortYears:        30,
	}
}

func TestIngest_OwnedPipeline(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.service.Ingest(context.Background(), ownedDocument())
	require.NoError(t, err)
	require.NotZero(t, result.PropertyID)
	require.NotZero(t, result.AcquisitionID)
	require.NotNil(t, result.Suggestion, "owned properties are analyzed on ingest")

	p, err := env.properties.GetByID(result.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, "Maplewood Apartments", p.Name)
	assert.Equal(t, domain.PropertyTypeMultiFamily, p.Type, "free-form type labels are normalized")
	assert.Equal(t, domain.OwnershipOwned, p.Ownership)
	assert.True(t, p.Current.MonthlyRent.Equal(decimal.NewFromInt(6200)))

	a, err := env.acquisitions.GetLatestByProperty(result.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, result.AcquisitionID, a.ID)
	assert.InDelta(t, DefaultRentGrowth, a.RentGrowth, 1e-12, "omitted growth rates take the package defaults")
	assert.InDelta(t, DefaultAppreciation, a.Appreciation, 1e-12)

	pf, err := env.proformas.GetByProperty(result.PropertyID)
	require.NoError(t, err)
	require.NotNil(t, pf)

	summary, err := env.portfolios.GetSummary(result.PortfolioID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PropertyCount)
}

func TestIngest_PotentialPipeline(t *testing.T) {
	env := newTestEnv(t)

	doc := ownedDocument()
	doc.OwnershipType = "potential"
	doc.CurrentValue = decimal.Zero
	doc.CurrentRent = decimal.Zero
	doc.CurrentLoanBalance = decimal.Zero
	doc.CurrentLoanRemainingYears = 0

	result, err := env.service.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.Nil(t, result.Suggestion, "candidates only get a proforma")

	pf, err := env.proformas.GetByProperty(result.PropertyID)
	require.NoError(t, err)
	require.NotNil(t, pf)
	assert.Positive(t, pf.GoingInCapRate)
}

func TestIngest_ExplicitGrowthRatesWin(t *testing.T) {
	env := newTestEnv(t)

	rentGrowth := 0.02
	doc := ownedDocument()
	doc.RentGrowth = &rentGrowth

	result, err := env.service.Ingest(context.Background(), doc)
	require.NoError(t, err)

	a, err := env.acquisitions.GetLatestByProperty(result.PropertyID)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, a.RentGrowth, 1e-12)
	assert.InDelta(t, DefaultExpenseGrowth, a.ExpenseGrowth, 1e-12)
}

func TestIngest_SamePortfolioIsReused(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.service.Ingest(context.Background(), ownedDocument())
	require.NoError(t, err)

	doc := ownedDocument()
	doc.Name = "Second Property"
	second, err := env.service.Ingest(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, first.PortfolioID, second.PortfolioID)

	summary, err := env.portfolios.GetSummary(first.PortfolioID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PropertyCount)
}

func TestIngest_RejectsInvalidDocuments(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		mutate func(*PropertyDocument)
		field  string
	}{
		{"missing portfolio name", func(d *PropertyDocument) { d.PortfolioName = "" }, "PortfolioName"},
		{"bad ownership type", func(d *PropertyDocument) { d.OwnershipType = "leased" }, "OwnershipType"},
		{"ltv above one", func(d *PropertyDocument) { d.LTV = 1.4 }, "LTV"},
		{"zero hold period", func(d *PropertyDocument) { d.HoldYears = 0 }, "HoldYears"},
		{"zero square footage", func(d *PropertyDocument) { d.PropertySF = 0 }, "PropertySF"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := ownedDocument()
			tc.mutate(doc)

			var verr *domain.ValidationError
			_, err := env.service.Ingest(context.Background(), doc)
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestIngest_RejectsUnknownPropertyType(t *testing.T) {
	env := newTestEnv(t)

	doc := ownedDocument()
	doc.PropertyType = "houseboat"

	var verr *domain.ValidationError
	_, err := env.service.Ingest(context.Background(), doc)
	assert.ErrorAs(t, err, &verr)
}

func TestIngestFile(t *testing.T) {
	env := newTestEnv(t)

	raw, err := json.Marshal(ownedDocument())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "property.json")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	result, err := env.service.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.NotZero(t, result.PropertyID)

	_, err = env.service.IngestFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
