package portfolio

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oakline/brickfolio/internal/domain"
)

// Repository handles portfolio and summary persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a portfolio repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreateByName returns the portfolio with the given name, creating
// it when absent
func (r *Repository) GetOrCreateByName(name string) (*domain.Portfolio, error) {
	if name == "" {
		return nil, &domain.ValidationError{Entity: "portfolio", Field: "name", Reason: "must not be empty"}
	}

	p, err := r.getByName(name)
	if err == nil {
		return p, nil
	}
	var nfe *domain.NotFoundError
	if !errors.As(err, &nfe) {
		return nil, err
	}

	if _, err := r.db.Exec(`INSERT INTO portfolios (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return nil, fmt.Errorf("failed to create portfolio %q: %w", name, err)
	}
	return r.getByName(name)
}

func (r *Repository) getByName(name string) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := r.db.QueryRow(`SELECT id, name, created_at FROM portfolios WHERE name = ?`, name).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "portfolio", ID: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio %q: %w", name, err)
	}
	return &p, nil
}

// GetByID fetches a portfolio by its numeric ID
func (r *Repository) GetByID(id int64) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := r.db.QueryRow(`SELECT id, name, created_at FROM portfolios WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "portfolio", ID: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio %d: %w", id, err)
	}
	return &p, nil
}

// List returns all portfolios ordered by name
func (r *Repository) List() ([]domain.Portfolio, error) {
	rows, err := r.db.Query(`SELECT id, name, created_at FROM portfolios ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var out []domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a portfolio and, via cascade, everything under it
func (r *Repository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "portfolio", ID: fmt.Sprintf("%d", id)}
	}
	return nil
}

// GetSummary returns the stored summary for a portfolio, or an empty
// versioned summary when none has been computed yet
func (r *Repository) GetSummary(portfolioID int64) (*domain.PortfolioSummary, error) {
	var (
		s                                  domain.PortfolioSummary
		totalEquity, totalValue, totalDebt sql.NullString
	)
	err := r.db.QueryRow(`
		SELECT portfolio_id, version, property_count,
		       avg_irr_actual, avg_irr_target, avg_dscr, avg_ltv,
		       total_equity, total_value, total_debt,
		       variance_irr, variance_noi, updated_at
		FROM portfolio_summary WHERE portfolio_id = ?`, portfolioID).
		Scan(&s.PortfolioID, &s.Version, &s.PropertyCount,
			&s.AvgIRRActual, &s.AvgIRRTarget, &s.AvgDSCR, &s.AvgLTV,
			&totalEquity, &totalValue, &totalDebt,
			&s.VarianceIRR, &s.VarianceNOI, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.PortfolioSummary{PortfolioID: portfolioID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query summary for portfolio %d: %w", portfolioID, err)
	}

	if s.TotalEquity, err = scanDecimal(totalEquity); err != nil {
		return nil, fmt.Errorf("bad total_equity for portfolio %d: %w", portfolioID, err)
	}
	if s.TotalValue, err = scanDecimal(totalValue); err != nil {
		return nil, fmt.Errorf("bad total_value for portfolio %d: %w", portfolioID, err)
	}
	if s.TotalDebt, err = scanDecimal(totalDebt); err != nil {
		return nil, fmt.Errorf("bad total_debt for portfolio %d: %w", portfolioID, err)
	}
	return &s, nil
}

// UpsertSummary writes a summary, guarded by an optimistic version
// check. expectedVersion is the version read before recomputing; the
// stored row must still carry it or the write is rejected.
func (r *Repository) UpsertSummary(s *domain.PortfolioSummary, expectedVersion int64) error {
	res, err := r.db.Exec(`
		INSERT INTO portfolio_summary (
			portfolio_id, version, property_count,
			avg_irr_actual, avg_irr_target, avg_dscr, avg_ltv,
			total_equity, total_value, total_debt,
			variance_irr, variance_noi, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id) DO UPDATE SET
			version        = excluded.version,
			property_count = excluded.property_count,
			avg_irr_actual = excluded.avg_irr_actual,
			avg_irr_target = excluded.avg_irr_target,
			avg_dscr       = excluded.avg_dscr,
			avg_ltv        = excluded.avg_ltv,
			total_equity   = excluded.total_equity,
			total_value    = excluded.total_value,
			total_debt     = excluded.total_debt,
			variance_irr   = excluded.variance_irr,
			variance_noi   = excluded.variance_noi,
			updated_at     = excluded.updated_at
		WHERE portfolio_summary.version = ?`,
		s.PortfolioID, expectedVersion+1, s.PropertyCount,
		s.AvgIRRActual, s.AvgIRRTarget, s.AvgDSCR, s.AvgLTV,
		decimalString(s.TotalEquity), decimalString(s.TotalValue), decimalString(s.TotalDebt),
		s.VarianceIRR, s.VarianceNOI, s.UpdatedAt,
		expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to upsert summary for portfolio %d: %w", s.PortfolioID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.AggregationConflictError{PortfolioID: s.PortfolioID}
	}
	s.Version = expectedVersion + 1
	return nil
}

func scanDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalString(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}
