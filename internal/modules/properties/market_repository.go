package properties

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/oakline/brickfolio/internal/domain"
)

// MarketRepository stores point-in-time market snapshots per property
type MarketRepository struct {
	db *sql.DB
}

// NewMarketRepository creates a market data repository
func NewMarketRepository(db *sql.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Append stores a new snapshot; history is kept for trend queries
func (r *MarketRepository) Append(m *domain.MarketSnapshot) error {
	res, err := r.db.Exec(`
		INSERT INTO market_data (
			property_id, region, median_rent_psf, median_sale_psf,
			median_cap_rate, vacancy_rate, treasury_10y, captured_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.PropertyID, m.Region, m.MedianRentPSF, m.MedianSalePSF,
		m.MedianCapRate, m.VacancyRate, m.Treasury10Y, m.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to insert market snapshot for property %d: %w", m.PropertyID, err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read market snapshot id: %w", err)
	}
	return nil
}

// GetLatestByProperty returns the most recent snapshot for a property,
// or nil when none has been captured. Analysis treats a nil snapshot
// as "market tier unavailable" rather than an error.
func (r *MarketRepository) GetLatestByProperty(propertyID int64) (*domain.MarketSnapshot, error) {
	var m domain.MarketSnapshot
	err := r.db.QueryRow(`
		SELECT id, property_id, region, median_rent_psf, median_sale_psf,
		       median_cap_rate, vacancy_rate, treasury_10y, captured_at
		FROM market_data WHERE property_id = ?
		ORDER BY captured_at DESC, id DESC LIMIT 1`, propertyID).
		Scan(&m.ID, &m.PropertyID, &m.Region, &m.MedianRentPSF, &m.MedianSalePSF,
			&m.MedianCapRate, &m.VacancyRate, &m.Treasury10Y, &m.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query market snapshot for property %d: %w", propertyID, err)
	}
	return &m, nil
}
