// Package properties persists properties and their per-property
// records: acquisition generations, proformas, market snapshots and
// suggestion history.
package properties

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakline/brickfolio/internal/domain"
)

const propertyColumns = `id, portfolio_id, name, address, city, state, zip,
	property_type, ownership_type, bedrooms, bathrooms, year_built,
	property_sf, acquisition_date, notes,
	current_value, monthly_rent, monthly_expenses, vacancy_rate,
	annual_tax, loan_balance, loan_rate, loan_remaining_years,
	created_at, updated_at`

// PropertyRepository handles property persistence
type PropertyRepository struct {
	db *sql.DB
}

// NewPropertyRepository creates a property repository
func NewPropertyRepository(db *sql.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// Create inserts a property and fills in its assigned ID
func (r *PropertyRepository) Create(p *domain.Property) error {
	now := time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT INTO properties (
			portfolio_id, name, address, city, state, zip,
			property_type, ownership_type, bedrooms, bathrooms, year_built,
			property_sf, acquisition_date, notes,
			current_value, monthly_rent, monthly_expenses, vacancy_rate,
			annual_tax, loan_balance, loan_rate, loan_remaining_years,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PortfolioID, p.Name, p.Address, p.City, p.State, p.Zip,
		string(p.Type), string(p.Ownership), p.Bedrooms, p.Bathrooms, p.YearBuilt,
		p.SquareFeet, p.AcquisitionDate, p.Notes,
		p.Current.Value.String(), p.Current.MonthlyRent.String(),
		p.Current.MonthlyExpenses.String(), p.Current.VacancyRate,
		p.Current.AnnualTax.String(), p.Current.LoanBalance.String(),
		p.Current.LoanRate, p.Current.LoanRemainingYears,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read property id: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateCurrentState replaces a property's operating snapshot
func (r *PropertyRepository) UpdateCurrentState(propertyID int64, s *domain.CurrentState) error {
	res, err := r.db.Exec(`
		UPDATE properties SET
			current_value = ?, monthly_rent = ?, monthly_expenses = ?,
			vacancy_rate = ?, annual_tax = ?, loan_balance = ?,
			loan_rate = ?, loan_remaining_years = ?, updated_at = ?
		WHERE id = ?`,
		s.Value.String(), s.MonthlyRent.String(), s.MonthlyExpenses.String(),
		s.VacancyRate, s.AnnualTax.String(), s.LoanBalance.String(),
		s.LoanRate, s.LoanRemainingYears, time.Now().UTC(),
		propertyID)
	if err != nil {
		return fmt.Errorf("failed to update property %d state: %w", propertyID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "property", ID: fmt.Sprintf("%d", propertyID)}
	}
	return nil
}

// GetByID fetches a single property
func (r *PropertyRepository) GetByID(id int64) (*domain.Property, error) {
	row := r.db.QueryRow(`SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "property", ID: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query property %d: %w", id, err)
	}
	return p, nil
}

// ListByPortfolio returns all properties in a portfolio
func (r *PropertyRepository) ListByPortfolio(portfolioID int64) ([]domain.Property, error) {
	rows, err := r.db.Query(`SELECT `+propertyColumns+` FROM properties WHERE portfolio_id = ? ORDER BY id`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	var out []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Delete removes a property and cascades to its dependent records
func (r *PropertyRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM properties WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete property %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "property", ID: fmt.Sprintf("%d", id)}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (*domain.Property, error) {
	var (
		p                                   domain.Property
		propertyType, ownership             string
		value, rent, expenses, tax, balance string
	)
	err := row.Scan(
		&p.ID, &p.PortfolioID, &p.Name, &p.Address, &p.City, &p.State, &p.Zip,
		&propertyType, &ownership, &p.Bedrooms, &p.Bathrooms, &p.YearBuilt,
		&p.SquareFeet, &p.AcquisitionDate, &p.Notes,
		&value, &rent, &expenses, &p.Current.VacancyRate,
		&tax, &balance, &p.Current.LoanRate, &p.Current.LoanRemainingYears,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Type = domain.PropertyType(propertyType)
	p.Ownership = domain.OwnershipType(ownership)

	for _, field := range []struct {
		raw  string
		dest *decimal.Decimal
	}{
		{value, &p.Current.Value},
		{rent, &p.Current.MonthlyRent},
		{expenses, &p.Current.MonthlyExpenses},
		{tax, &p.Current.AnnualTax},
		{balance, &p.Current.LoanBalance},
	} {
		d, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, fmt.Errorf("bad decimal column value %q: %w", field.raw, err)
		}
		*field.dest = d
	}
	return &p, nil
}
