// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PropertyType classifies the physical asset
type PropertyType string

const (
	PropertyTypeSingleFamily PropertyType = "single_family"
	PropertyTypeMultiFamily  PropertyType = "multi_family"
	PropertyTypeCondo        PropertyType = "condo"
	PropertyTypeTownhome     PropertyType = "townhome"
	PropertyTypeCommercial   PropertyType = "commercial"
	PropertyTypeMixedUse     PropertyType = "mixed_use"
)

// ParsePropertyType maps a raw string to a PropertyType
func ParsePropertyType(s string) (PropertyType, error) {
	switch PropertyType(s) {
	case PropertyTypeSingleFamily, PropertyTypeMultiFamily, PropertyTypeCondo,
		PropertyTypeTownhome, PropertyTypeCommercial, PropertyTypeMixedUse:
		return PropertyType(s), nil
	}
	return "", &ValidationError{Entity: "property", Field: "property_type", Reason: "unknown property type: " + s}
}

// OwnershipType distinguishes owned assets from acquisition candidates
type OwnershipType string

const (
	OwnershipOwned     OwnershipType = "owned"
	OwnershipPotential OwnershipType = "potential"
)

// SuggestionAction is the recommended disposition for a property
type SuggestionAction string

const (
	ActionHold      SuggestionAction = "hold"
	ActionRefinance SuggestionAction = "refinance"
	ActionSell      SuggestionAction = "sell"
)

// Portfolio groups properties under a unique name
type Portfolio struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CurrentState is the user-maintained operating snapshot of a property.
// Rent and expenses are monthly amounts, tax is annual.
type CurrentState struct {
	Value              decimal.Decimal `json:"current_value"`
	MonthlyRent        decimal.Decimal `json:"current_rent"`
	MonthlyExpenses    decimal.Decimal `json:"current_expense"`
	VacancyRate        float64         `json:"current_vacancy_rate"`
	AnnualTax          decimal.Decimal `json:"current_tax_annual"`
	LoanBalance        decimal.Decimal `json:"current_loan_balance"`
	LoanRate           float64         `json:"current_loan_rate"`
	LoanRemainingYears int             `json:"current_loan_remaining_years"`
}

// Property is a single real-estate asset owned by a portfolio
type Property struct {
	ID              int64         `json:"id"`
	PortfolioID     int64         `json:"portfolio_id"`
	Name            string        `json:"name"`
	Address         string        `json:"address"`
	City            string        `json:"city"`
	State           string        `json:"state"`
	Zip             string        `json:"zip"`
	Type            PropertyType  `json:"property_type"`
	Ownership       OwnershipType `json:"ownership_type"`
	Bedrooms        int           `json:"bedrooms"`
	Bathrooms       float64       `json:"bathrooms"`
	YearBuilt       int           `json:"year_built"`
	SquareFeet      int           `json:"property_sf"`
	AcquisitionDate string        `json:"acquisition_date"`
	Current         CurrentState  `json:"current_state"`
	Notes           string        `json:"notes"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// AcquisitionAssumptions captures the underwriting inputs at purchase.
// Immutable once created: an edit inserts a new row (a new generation) and
// the old proforma becomes stale.
type AcquisitionAssumptions struct {
	ID         int64 `json:"id"`
	PropertyID int64 `json:"property_id"`

	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	ClosingCostPct float64         `json:"closing_costs"` // fraction of purchase price
	DateOfClose    string          `json:"date_of_close"`

	MonthlyRent        decimal.Decimal `json:"rent_immediately_after_purchase"`
	VacancyRate        float64         `json:"vacancy_immediately_after_purchase"`
	MonthlyOtherIncome decimal.Decimal `json:"other_income_immediately_after_purchase"`
	MonthlyExpenses    decimal.Decimal `json:"operating_expenses_after_purchase"`
	AnnualCapex        decimal.Decimal `json:"capital_expense_after_purchase"`
	TaxAssessment      decimal.Decimal `json:"tax_assessment_price_immediately_after_purchase"`

	ExitCapRate   float64 `json:"exit_cap_rate_expectation"`
	HoldYears     int     `json:"hold_period_years"`
	CostOfSalePct float64 `json:"cost_of_sale_percentage"`

	LTV               float64 `json:"ltv"`
	OriginationFeePct float64 `json:"loan_origination_fee"`
	InterestRate      float64 `json:"interest_rate"`
	AmortYears        int     `json:"amortization_years"`

	RentGrowth    float64 `json:"expected_rent_growth"`
	ExpenseGrowth float64 `json:"expected_expense_growth"`
	CapexGrowth   float64 `json:"expected_capex_growth"`
	Appreciation  float64 `json:"expected_appreciation"`

	CreatedAt time.Time `json:"created_at"`
}

// ProformaResult is the derived projection for a property. It is fully
// replaced on every recompute and references the exact assumptions
// generation it was computed from.
type ProformaResult struct {
	PropertyID    int64 `json:"property_id"`
	AcquisitionID int64 `json:"acquisition_id"`
	HoldYears     int   `json:"hold_period_years"`

	GoingInCapRate float64 `json:"going_in_cap_rate"`
	Year1OpExRatio float64 `json:"year1_op_ex_ratio"`

	// Debt metrics are nil for all-cash acquisitions (LTV = 0)
	LoanConstant     *float64 `json:"loan_constant,omitempty"`
	GoingInDSCR      *float64 `json:"going_in_dscr,omitempty"`
	GoingInDebtYield *float64 `json:"going_in_debt_yield,omitempty"`
	ExitLTV          *float64 `json:"exit_ltv,omitempty"`

	UnleveredIRR   float64 `json:"unlevered_irr"`
	LeveredIRR     float64 `json:"levered_irr"`
	UnleveredEM    float64 `json:"unlevered_equity_multiple"`
	LeveredEM      float64 `json:"levered_equity_multiple"`
	AvgUnleveredCC float64 `json:"avg_unlevered_coc"`
	AvgLeveredCC   float64 `json:"avg_levered_coc"`

	ProjectedSalePrice decimal.Decimal `json:"projected_sale_price"`
	NetSaleProceeds    decimal.Decimal `json:"net_sale_proceeds"`

	GeneratedAt time.Time `json:"generated_at"`
}

// MarketSnapshot is a point-in-time view of comparables and macro
// indicators for a property's region. Only the latest snapshot is used
// by default.
type MarketSnapshot struct {
	ID         int64  `json:"id"`
	PropertyID int64  `json:"property_id"`
	Region     string `json:"region"`

	MedianRentPSF float64 `json:"median_rent_psf"` // annual rent per square foot
	MedianSalePSF float64 `json:"median_sale_psf"`
	MedianCapRate float64 `json:"median_cap_rate"`
	VacancyRate   float64 `json:"market_vacancy_rate"`
	Treasury10Y   float64 `json:"treasury_10y"`

	CapturedAt time.Time `json:"captured_at"`
}

// Suggestion is an append-only analysis outcome for a property
type Suggestion struct {
	ID         string           `json:"id"`
	PropertyID int64            `json:"property_id"`
	Action     SuggestionAction `json:"action"`
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence_score"`

	RationaleLevel1 string `json:"rationale_level1"`
	RationaleLevel2 string `json:"rationale_level2"`
	RationaleLevel3 string `json:"rationale_level3"`
	Summary         string `json:"ai_summary"`

	GeneratedAt time.Time `json:"generated_at"`
}

// PortfolioSummary holds rolled-up metrics across a portfolio's members.
// All aggregate fields are nil when the portfolio has no properties, so
// "no data" is distinguishable from data that averages to zero.
type PortfolioSummary struct {
	PortfolioID   int64 `json:"portfolio_id"`
	Version       int64 `json:"version"`
	PropertyCount int   `json:"property_count"`

	AvgIRRActual *float64 `json:"avg_irr_actual,omitempty"`
	AvgIRRTarget *float64 `json:"avg_irr_target,omitempty"`
	AvgDSCR      *float64 `json:"avg_dscr,omitempty"`
	AvgLTV       *float64 `json:"avg_ltv,omitempty"`

	TotalEquity *decimal.Decimal `json:"total_equity,omitempty"`
	TotalValue  *decimal.Decimal `json:"total_value,omitempty"`
	TotalDebt   *decimal.Decimal `json:"total_debt,omitempty"`

	VarianceIRR *float64 `json:"variance_irr,omitempty"`
	VarianceNOI *float64 `json:"variance_noi,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
