package properties

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakline/brickfolio/internal/domain"
)

const acquisitionColumns = `id, property_id, purchase_price, closing_cost_pct,
	date_of_close, monthly_rent, vacancy_rate, monthly_other_income,
	monthly_expenses, annual_capex, tax_assessment,
	exit_cap_rate, hold_years, cost_of_sale_pct,
	ltv, origination_fee_pct, interest_rate, amort_years,
	rent_growth, expense_growth, capex_growth, appreciation, created_at`

// AcquisitionRepository stores underwriting assumptions. Rows are
// append-only generations: an edit inserts a new row and the latest
// one is the active generation.
type AcquisitionRepository struct {
	db *sql.DB
}

// NewAcquisitionRepository creates an acquisition repository
func NewAcquisitionRepository(db *sql.DB) *AcquisitionRepository {
	return &AcquisitionRepository{db: db}
}

// Append inserts a new assumptions generation for a property
func (r *AcquisitionRepository) Append(a *domain.AcquisitionAssumptions) error {
	if err := a.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT INTO acquisition_data (
			property_id, purchase_price, closing_cost_pct, date_of_close,
			monthly_rent, vacancy_rate, monthly_other_income,
			monthly_expenses, annual_capex, tax_assessment,
			exit_cap_rate, hold_years, cost_of_sale_pct,
			ltv, origination_fee_pct, interest_rate, amort_years,
			rent_growth, expense_growth, capex_growth, appreciation, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PropertyID, a.PurchasePrice.String(), a.ClosingCostPct, a.DateOfClose,
		a.MonthlyRent.String(), a.VacancyRate, a.MonthlyOtherIncome.String(),
		a.MonthlyExpenses.String(), a.AnnualCapex.String(), a.TaxAssessment.String(),
		a.ExitCapRate, a.HoldYears, a.CostOfSalePct,
		a.LTV, a.OriginationFeePct, a.InterestRate, a.AmortYears,
		a.RentGrowth, a.ExpenseGrowth, a.CapexGrowth, a.Appreciation, now)
	if err != nil {
		return fmt.Errorf("failed to insert acquisition data for property %d: %w", a.PropertyID, err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read acquisition id: %w", err)
	}
	a.CreatedAt = now
	return nil
}

// GetLatestByProperty returns the newest assumptions generation, or a
// DataMissingError when the property has none
func (r *AcquisitionRepository) GetLatestByProperty(propertyID int64) (*domain.AcquisitionAssumptions, error) {
	row := r.db.QueryRow(`SELECT `+acquisitionColumns+`
		FROM acquisition_data WHERE property_id = ? ORDER BY id DESC LIMIT 1`, propertyID)
	a, err := scanAcquisition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.DataMissingError{PropertyID: propertyID, Input: "acquisition_data"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query acquisition data for property %d: %w", propertyID, err)
	}
	return a, nil
}

// ListByProperty returns every generation, newest first
func (r *AcquisitionRepository) ListByProperty(propertyID int64) ([]domain.AcquisitionAssumptions, error) {
	rows, err := r.db.Query(`SELECT `+acquisitionColumns+`
		FROM acquisition_data WHERE property_id = ? ORDER BY id DESC`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acquisition data for property %d: %w", propertyID, err)
	}
	defer rows.Close()

	var out []domain.AcquisitionAssumptions
	for rows.Next() {
		a, err := scanAcquisition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan acquisition row: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAcquisition(row rowScanner) (*domain.AcquisitionAssumptions, error) {
	var (
		a                                               domain.AcquisitionAssumptions
		price, rent, other, expenses, capex, assessment string
	)
	err := row.Scan(
		&a.ID, &a.PropertyID, &price, &a.ClosingCostPct,
		&a.DateOfClose, &rent, &a.VacancyRate, &other,
		&expenses, &capex, &assessment,
		&a.ExitCapRate, &a.HoldYears, &a.CostOfSalePct,
		&a.LTV, &a.OriginationFeePct, &a.InterestRate, &a.AmortYears,
		&a.RentGrowth, &a.ExpenseGrowth, &a.CapexGrowth, &a.Appreciation, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		raw  string
		dest *decimal.Decimal
	}{
		{price, &a.PurchasePrice},
		{rent, &a.MonthlyRent},
		{other, &a.MonthlyOtherIncome},
		{expenses, &a.MonthlyExpenses},
		{capex, &a.AnnualCapex},
		{assessment, &a.TaxAssessment},
	} {
		d, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, fmt.Errorf("bad decimal column value %q: %w", field.raw, err)
		}
		*field.dest = d
	}
	return &a, nil
}
