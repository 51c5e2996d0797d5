// Package ingestion turns property documents into stored portfolio
// records and triggers their first analysis.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oakline/brickfolio/internal/domain"
	"github.com/oakline/brickfolio/internal/modules/analysis"
	"github.com/oakline/brickfolio/internal/modules/portfolio"
	"github.com/oakline/brickfolio/internal/modules/properties"
)

// Growth defaults applied when a document omits projection rates
const (
	DefaultRentGrowth    = 0.04
	DefaultExpenseGrowth = 0.025
	DefaultCapexGrowth   = 0.02
	DefaultAppreciation  = 0.054
)

// PropertyDocument is the external JSON contract for ingesting a
// property. Field names follow the submission format; unknown fields
// are ignored.
type PropertyDocument struct {
	OwnershipType string `json:"ownership_type" validate:"required,oneof=owned potential"`
	PortfolioName string `json:"portfolio_name" validate:"required,min=1"`
	Name          string `json:"name" validate:"required,min=1"`
	Address       string `json:"address" validate:"required,min=1"`
	City          string `json:"city" validate:"required,min=1"`
	State         string `json:"state" validate:"required,min=1"`
	Zip           string `json:"zip" validate:"required,min=1"`
	PropertyType  string `json:"property_type" validate:"required,min=1"`

	Bedrooms   int     `json:"bedrooms" validate:"gte=0"`
	Bathrooms  float64 `json:"bathrooms" validate:"gte=0"`
	YearBuilt  int     `json:"year_built" validate:"gte=1800"`
	PropertySF int     `json:"property_sf" validate:"gt=0"`

	CurrentValue              decimal.Decimal `json:"current_value"`
	CurrentRent               decimal.Decimal `json:"current_rent"`
	CurrentExpense            decimal.Decimal `json:"current_expense"`
	CurrentVacancyRate        float64         `json:"current_vacancy_rate" validate:"gte=0,lte=1"`
	CurrentTaxAnnual          decimal.Decimal `json:"current_tax_annual"`
	CurrentLoanBalance        decimal.Decimal `json:"current_loan_balance"`
	CurrentLoanRate           float64         `json:"current_loan_rate" validate:"gte=0,lte=1"`
	CurrentLoanRemainingYears int             `json:"current_loan_remaining_years" validate:"gte=0"`

	AcquisitionDate string          `json:"acquisition_date" validate:"required,min=4"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	ClosingCosts    float64         `json:"closing_costs" validate:"gte=0,lte=1"`
	DateOfClose     string          `json:"date_of_close" validate:"required,min=4"`

	RentAfterPurchase        decimal.Decimal `json:"rent_immediately_after_purchase"`
	VacancyAfterPurchase     float64         `json:"vacancy_immediately_after_purchase" validate:"gte=0,lte=1"`
	OtherIncomeAfterPurchase decimal.Decimal `json:"other_income_immediately_after_purchase"`
	ExpensesAfterPurchase    decimal.Decimal `json:"operating_expenses_after_purchase"`
	CapexAfterPurchase       decimal.Decimal `json:"capital_expense_after_purchase"`
	TaxAssessment            decimal.Decimal `json:"tax_assessment_price_immediately_after_purchase"`

	ExitCapRate   float64 `json:"exit_cap_rate_expectation" validate:"gt=0,lte=1"`
	HoldYears     int     `json:"hold_period_years" validate:"gt=0"`
	CostOfSalePct float64 `json:"cost_of_sale_percentage" validate:"gte=0,lte=1"`

	LTV               float64 `json:"ltv" validate:"gte=0,lte=1"`
	OriginationFeePct float64 `json:"loan_origination_fee" validate:"gte=0"`
	InterestRate      float64 `json:"interest_rate" validate:"gte=0,lte=1"`
	AmortYears        int     `json:"amortization_years" validate:"gt=0"`

	// Optional projection rates; package defaults fill any omitted one
	RentGrowth    *float64 `json:"expected_rent_growth" validate:"omitempty,gt=-1"`
	ExpenseGrowth *float64 `json:"expected_expense_growth" validate:"omitempty,gt=-1"`
	CapexGrowth   *float64 `json:"expected_capex_growth" validate:"omitempty,gt=-1"`
	Appreciation  *float64 `json:"expected_appreciation" validate:"omitempty,gt=-1"`

	Notes string `json:"notes"`
}

// Result reports what an ingestion created
type Result struct {
	PortfolioID   int64              `json:"portfolio_id"`
	PropertyID    int64              `json:"property_id"`
	AcquisitionID int64              `json:"acquisition_id"`
	Suggestion    *domain.Suggestion `json:"suggestion,omitempty"`
}

// Service runs the ingestion pipeline
type Service struct {
	validate     *validator.Validate
	portfolios   *portfolio.Repository
	properties   *properties.PropertyRepository
	acquisitions *properties.AcquisitionRepository
	analysis     *analysis.Service
	log          zerolog.Logger
}

// NewService creates an ingestion service
func NewService(
	portfolios *portfolio.Repository,
	props *properties.PropertyRepository,
	acquisitions *properties.AcquisitionRepository,
	analysisService *analysis.Service,
	log zerolog.Logger,
) *Service {
	return &Service{
		validate:     validator.New(),
		portfolios:   portfolios,
		properties:   props,
		acquisitions: acquisitions,
		analysis:     analysisService,
		log:          log.With().Str("component", "ingestion").Logger(),
	}
}

// IngestFile reads a property document from disk and ingests it
func (s *Service) IngestFile(ctx context.Context, path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read property document %s: %w", path, err)
	}
	var doc PropertyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.ValidationError{Entity: "property_document", Field: "json", Reason: err.Error()}
	}
	return s.Ingest(ctx, &doc)
}

// Ingest validates a document and runs the pipeline for its ownership
// type. Owned properties get a full analysis; potential ones only a
// proforma, since they have no operating state to score.
func (s *Service) Ingest(ctx context.Context, doc *PropertyDocument) (*Result, error) {
	if err := s.validateDocument(doc); err != nil {
		return nil, err
	}

	propertyType, err := normalizePropertyType(doc.PropertyType)
	if err != nil {
		return nil, err
	}

	pfolio, err := s.portfolios.GetOrCreateByName(strings.TrimSpace(doc.PortfolioName))
	if err != nil {
		return nil, err
	}

	property := doc.toProperty(pfolio.ID, propertyType)
	if err := s.properties.Create(property); err != nil {
		return nil, err
	}

	acq := doc.toAssumptions(property.ID)
	if err := s.acquisitions.Append(acq); err != nil {
		return nil, err
	}

	result := &Result{
		PortfolioID:   pfolio.ID,
		PropertyID:    property.ID,
		AcquisitionID: acq.ID,
	}

	switch property.Ownership {
	case domain.OwnershipOwned:
		suggestion, err := s.analysis.AnalyzeProperty(ctx, property.ID)
		if err != nil {
			return nil, err
		}
		result.Suggestion = suggestion
	case domain.OwnershipPotential:
		if _, err := s.analysis.ComputeProforma(ctx, property); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Int64("property_id", property.ID).
		Str("portfolio", pfolio.Name).
		Str("ownership", string(property.Ownership)).
		Msg("property ingested")

	return result, nil
}

func (s *Service) validateDocument(doc *PropertyDocument) error {
	err := s.validate.Struct(doc)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &domain.ValidationError{
			Entity: "property_document",
			Field:  fe.Field(),
			Reason: fmt.Sprintf("failed %q constraint", fe.Tag()),
		}
	}
	return err
}

// normalizePropertyType maps free-form type labels ("Multi-Family",
// "single family") onto the canonical enum
func normalizePropertyType(raw string) (domain.PropertyType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	return domain.ParsePropertyType(normalized)
}

func (d *PropertyDocument) toProperty(portfolioID int64, propertyType domain.PropertyType) *domain.Property {
	return &domain.Property{
		PortfolioID:     portfolioID,
		Name:            strings.TrimSpace(d.Name),
		Address:         strings.TrimSpace(d.Address),
		City:            strings.TrimSpace(d.City),
		State:           strings.TrimSpace(d.State),
		Zip:             strings.TrimSpace(d.Zip),
		Type:            propertyType,
		Ownership:       domain.OwnershipType(d.OwnershipType),
		Bedrooms:        d.Bedrooms,
		Bathrooms:       d.Bathrooms,
		YearBuilt:       d.YearBuilt,
		SquareFeet:      d.PropertySF,
		AcquisitionDate: d.AcquisitionDate,
		Notes:           d.Notes,
		Current: domain.CurrentState{
			Value:              d.CurrentValue,
			MonthlyRent:        d.CurrentRent,
			MonthlyExpenses:    d.CurrentExpense,
			VacancyRate:        d.CurrentVacancyRate,
			AnnualTax:          d.CurrentTaxAnnual,
			LoanBalance:        d.CurrentLoanBalance,
			LoanRate:           d.CurrentLoanRate,
			LoanRemainingYears: d.CurrentLoanRemainingYears,
		},
	}
}

func (d *PropertyDocument) toAssumptions(propertyID int64) *domain.AcquisitionAssumptions {
	return &domain.AcquisitionAssumptions{
		PropertyID:         propertyID,
		PurchasePrice:      d.PurchasePrice,
		ClosingCostPct:     d.ClosingCosts,
		DateOfClose:        d.DateOfClose,
		MonthlyRent:        d.RentAfterPurchase,
		VacancyRate:        d.VacancyAfterPurchase,
		MonthlyOtherIncome: d.OtherIncomeAfterPurchase,
		MonthlyExpenses:    d.ExpensesAfterPurchase,
		AnnualCapex:        d.CapexAfterPurchase,
		TaxAssessment:      d.TaxAssessment,
		ExitCapRate:        d.ExitCapRate,
		HoldYears:          d.HoldYears,
		CostOfSalePct:      d.CostOfSalePct,
		LTV:                d.LTV,
		OriginationFeePct:  d.OriginationFeePct,
		InterestRate:       d.InterestRate,
		AmortYears:         d.AmortYears,
		RentGrowth:         orDefault(d.RentGrowth, DefaultRentGrowth),
		ExpenseGrowth:      orDefault(d.ExpenseGrowth, DefaultExpenseGrowth),
		CapexGrowth:        orDefault(d.CapexGrowth, DefaultCapexGrowth),
		Appreciation:       orDefault(d.Appreciation, DefaultAppreciation),
	}
}

func orDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
