package properties

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oakline/brickfolio/internal/database"
	"github.com/oakline/brickfolio/internal/domain"
)

// ProformaRepository stores computed projections, one per property
type ProformaRepository struct {
	db *sql.DB
}

// NewProformaRepository creates a proforma repository
func NewProformaRepository(db *sql.DB) *ProformaRepository {
	return &ProformaRepository{db: db}
}

// Replace swaps a property's proforma for a freshly computed one. The
// delete and insert run in one transaction so readers never observe a
// property with two proformas or a half-written row.
func (r *ProformaRepository) Replace(pf *domain.ProformaResult) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM proforma_data WHERE property_id = ?`, pf.PropertyID); err != nil {
			return fmt.Errorf("failed to clear proforma for property %d: %w", pf.PropertyID, err)
		}
		_, err := tx.Exec(`
			INSERT INTO proforma_data (
				property_id, acquisition_id, hold_years,
				going_in_cap_rate, year1_opex_ratio,
				loan_constant, going_in_dscr, going_in_debt_yield, exit_ltv,
				unlevered_irr, levered_irr, unlevered_em, levered_em,
				avg_unlevered_cc, avg_levered_cc,
				projected_sale_price, net_sale_proceeds, generated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pf.PropertyID, pf.AcquisitionID, pf.HoldYears,
			pf.GoingInCapRate, pf.Year1OpExRatio,
			pf.LoanConstant, pf.GoingInDSCR, pf.GoingInDebtYield, pf.ExitLTV,
			pf.UnleveredIRR, pf.LeveredIRR, pf.UnleveredEM, pf.LeveredEM,
			pf.AvgUnleveredCC, pf.AvgLeveredCC,
			pf.ProjectedSalePrice.String(), pf.NetSaleProceeds.String(), pf.GeneratedAt)
		if err != nil {
			return fmt.Errorf("failed to insert proforma for property %d: %w", pf.PropertyID, err)
		}
		return nil
	})
}

// GetByProperty returns a property's proforma, or nil when none has
// been computed
func (r *ProformaRepository) GetByProperty(propertyID int64) (*domain.ProformaResult, error) {
	var (
		pf                  domain.ProformaResult
		salePrice, proceeds string
	)
	err := r.db.QueryRow(`
		SELECT property_id, acquisition_id, hold_years,
		       going_in_cap_rate, year1_opex_ratio,
		       loan_constant, going_in_dscr, going_in_debt_yield, exit_ltv,
		       unlevered_irr, levered_irr, unlevered_em, levered_em,
		       avg_unlevered_cc, avg_levered_cc,
		       projected_sale_price, net_sale_proceeds, generated_at
		FROM proforma_data WHERE property_id = ?`, propertyID).
		Scan(&pf.PropertyID, &pf.AcquisitionID, &pf.HoldYears,
			&pf.GoingInCapRate, &pf.Year1OpExRatio,
			&pf.LoanConstant, &pf.GoingInDSCR, &pf.GoingInDebtYield, &pf.ExitLTV,
			&pf.UnleveredIRR, &pf.LeveredIRR, &pf.UnleveredEM, &pf.LeveredEM,
			&pf.AvgUnleveredCC, &pf.AvgLeveredCC,
			&salePrice, &proceeds, &pf.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query proforma for property %d: %w", propertyID, err)
	}

	if pf.ProjectedSalePrice, err = decimal.NewFromString(salePrice); err != nil {
		return nil, fmt.Errorf("bad projected_sale_price %q: %w", salePrice, err)
	}
	if pf.NetSaleProceeds, err = decimal.NewFromString(proceeds); err != nil {
		return nil, fmt.Errorf("bad net_sale_proceeds %q: %w", proceeds, err)
	}
	return &pf, nil
}

// MapByPortfolio returns proformas for every property in a portfolio
// keyed by property ID
func (r *ProformaRepository) MapByPortfolio(portfolioID int64) (map[int64]*domain.ProformaResult, error) {
	rows, err := r.db.Query(`
		SELECT pf.property_id, pf.acquisition_id, pf.hold_years,
		       pf.going_in_cap_rate, pf.year1_opex_ratio,
		       pf.loan_constant, pf.going_in_dscr, pf.going_in_debt_yield, pf.exit_ltv,
		       pf.unlevered_irr, pf.levered_irr, pf.unlevered_em, pf.levered_em,
		       pf.avg_unlevered_cc, pf.avg_levered_cc,
		       pf.projected_sale_price, pf.net_sale_proceeds, pf.generated_at
		FROM proforma_data pf
		JOIN properties p ON p.id = pf.property_id
		WHERE p.portfolio_id = ?`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proformas for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	out := make(map[int64]*domain.ProformaResult)
	for rows.Next() {
		var (
			pf                  domain.ProformaResult
			salePrice, proceeds string
		)
		if err := rows.Scan(&pf.PropertyID, &pf.AcquisitionID, &pf.HoldYears,
			&pf.GoingInCapRate, &pf.Year1OpExRatio,
			&pf.LoanConstant, &pf.GoingInDSCR, &pf.GoingInDebtYield, &pf.ExitLTV,
			&pf.UnleveredIRR, &pf.LeveredIRR, &pf.UnleveredEM, &pf.LeveredEM,
			&pf.AvgUnleveredCC, &pf.AvgLeveredCC,
			&salePrice, &proceeds, &pf.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proforma row: %w", err)
		}
		if pf.ProjectedSalePrice, err = decimal.NewFromString(salePrice); err != nil {
			return nil, fmt.Errorf("bad projected_sale_price %q: %w", salePrice, err)
		}
		if pf.NetSaleProceeds, err = decimal.NewFromString(proceeds); err != nil {
			return nil, fmt.Errorf("bad net_sale_proceeds %q: %w", proceeds, err)
		}
		out[pf.PropertyID] = &pf
	}
	return out, rows.Err()
}
