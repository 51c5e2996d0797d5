package analysis

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/oakline/brickfolio/internal/domain"
)

// ProformaCache memoizes computed proformas keyed by a digest of the
// underwriting inputs. Entries live in the cache database and can be
// dropped wholesale; everything is recomputable.
type ProformaCache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewProformaCache creates a proforma cache over the cache database
func NewProformaCache(db *sql.DB, log zerolog.Logger) *ProformaCache {
	return &ProformaCache{
		db:  db,
		log: log.With().Str("component", "proforma_cache").Logger(),
	}
}

// cacheKeyInputs is the canonical key material: every economic input
// that influences the proforma, and nothing else. Row identity and
// timestamps are excluded so re-saving identical assumptions hits.
type cacheKeyInputs struct {
	PurchasePrice      string  `msgpack:"purchase_price"`
	ClosingCostPct     float64 `msgpack:"closing_cost_pct"`
	MonthlyRent        string  `msgpack:"monthly_rent"`
	VacancyRate        float64 `msgpack:"vacancy_rate"`
	MonthlyOtherIncome string  `msgpack:"monthly_other_income"`
	MonthlyExpenses    string  `msgpack:"monthly_expenses"`
	AnnualCapex        string  `msgpack:"annual_capex"`
	ExitCapRate        float64 `msgpack:"exit_cap_rate"`
	HoldYears          int     `msgpack:"hold_years"`
	CostOfSalePct      float64 `msgpack:"cost_of_sale_pct"`
	LTV                float64 `msgpack:"ltv"`
	OriginationFeePct  float64 `msgpack:"origination_fee_pct"`
	InterestRate       float64 `msgpack:"interest_rate"`
	AmortYears         int     `msgpack:"amort_years"`
	RentGrowth         float64 `msgpack:"rent_growth"`
	ExpenseGrowth      float64 `msgpack:"expense_growth"`
	CapexGrowth        float64 `msgpack:"capex_growth"`
	Appreciation       float64 `msgpack:"appreciation"`
}

// cachedProforma is the stored payload. Decimals travel as strings so
// no precision is lost in the binary encoding.
type cachedProforma struct {
	PropertyID    int64 `msgpack:"property_id"`
	AcquisitionID int64 `msgpack:"acquisition_id"`
	HoldYears     int   `msgpack:"hold_years"`

	GoingInCapRate float64 `msgpack:"going_in_cap_rate"`
	Year1OpExRatio float64 `msgpack:"year1_opex_ratio"`

	LoanConstant     *float64 `msgpack:"loan_constant"`
	GoingInDSCR      *float64 `msgpack:"going_in_dscr"`
	GoingInDebtYield *float64 `msgpack:"going_in_debt_yield"`
	ExitLTV          *float64 `msgpack:"exit_ltv"`

	UnleveredIRR   float64 `msgpack:"unlevered_irr"`
	LeveredIRR     float64 `msgpack:"levered_irr"`
	UnleveredEM    float64 `msgpack:"unlevered_em"`
	LeveredEM      float64 `msgpack:"levered_em"`
	AvgUnleveredCC float64 `msgpack:"avg_unlevered_cc"`
	AvgLeveredCC   float64 `msgpack:"avg_levered_cc"`

	ProjectedSalePrice string    `msgpack:"projected_sale_price"`
	NetSaleProceeds    string    `msgpack:"net_sale_proceeds"`
	GeneratedAt        time.Time `msgpack:"generated_at"`
}

// Key derives the cache key for a set of assumptions
func (c *ProformaCache) Key(a *domain.AcquisitionAssumptions) (string, error) {
	inputs := cacheKeyInputs{
		PurchasePrice:      a.PurchasePrice.String(),
		ClosingCostPct:     a.ClosingCostPct,
		MonthlyRent:        a.MonthlyRent.String(),
		VacancyRate:        a.VacancyRate,
		MonthlyOtherIncome: a.MonthlyOtherIncome.String(),
		MonthlyExpenses:    a.MonthlyExpenses.String(),
		AnnualCapex:        a.AnnualCapex.String(),
		ExitCapRate:        a.ExitCapRate,
		HoldYears:          a.HoldYears,
		CostOfSalePct:      a.CostOfSalePct,
		LTV:                a.LTV,
		OriginationFeePct:  a.OriginationFeePct,
		InterestRate:       a.InterestRate,
		AmortYears:         a.AmortYears,
		RentGrowth:         a.RentGrowth,
		ExpenseGrowth:      a.ExpenseGrowth,
		CapexGrowth:        a.CapexGrowth,
		Appreciation:       a.Appreciation,
	}
	encoded, err := msgpack.Marshal(&inputs)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key inputs: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns a cached proforma, or nil on miss. Rows that fail to
// decode are treated as misses and evicted.
func (c *ProformaCache) Get(key string) (*domain.ProformaResult, error) {
	var payload []byte
	err := c.db.QueryRow(`SELECT payload FROM proforma_cache WHERE cache_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query proforma cache: %w", err)
	}

	var cached cachedProforma
	if err := msgpack.Unmarshal(payload, &cached); err != nil {
		c.log.Warn().Str("key", key).Err(err).Msg("evicting undecodable cache entry")
		_, _ = c.db.Exec(`DELETE FROM proforma_cache WHERE cache_key = ?`, key)
		return nil, nil
	}

	pf, err := cached.toDomain()
	if err != nil {
		c.log.Warn().Str("key", key).Err(err).Msg("evicting corrupt cache entry")
		_, _ = c.db.Exec(`DELETE FROM proforma_cache WHERE cache_key = ?`, key)
		return nil, nil
	}
	return pf, nil
}

// Put stores a proforma under the given key
func (c *ProformaCache) Put(key string, pf *domain.ProformaResult) error {
	cached := cachedProforma{
		PropertyID:         pf.PropertyID,
		AcquisitionID:      pf.AcquisitionID,
		HoldYears:          pf.HoldYears,
		GoingInCapRate:     pf.GoingInCapRate,
		Year1OpExRatio:     pf.Year1OpExRatio,
		LoanConstant:       pf.LoanConstant,
		GoingInDSCR:        pf.GoingInDSCR,
		GoingInDebtYield:   pf.GoingInDebtYield,
		ExitLTV:            pf.ExitLTV,
		UnleveredIRR:       pf.UnleveredIRR,
		LeveredIRR:         pf.LeveredIRR,
		UnleveredEM:        pf.UnleveredEM,
		LeveredEM:          pf.LeveredEM,
		AvgUnleveredCC:     pf.AvgUnleveredCC,
		AvgLeveredCC:       pf.AvgLeveredCC,
		ProjectedSalePrice: pf.ProjectedSalePrice.String(),
		NetSaleProceeds:    pf.NetSaleProceeds.String(),
		GeneratedAt:        pf.GeneratedAt,
	}
	payload, err := msgpack.Marshal(&cached)
	if err != nil {
		return fmt.Errorf("failed to encode proforma for cache: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT INTO proforma_cache (cache_key, property_id, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload`,
		key, pf.PropertyID, payload)
	if err != nil {
		return fmt.Errorf("failed to store proforma cache entry: %w", err)
	}
	return nil
}

// InvalidateProperty drops every entry for a property
func (c *ProformaCache) InvalidateProperty(propertyID int64) error {
	if _, err := c.db.Exec(`DELETE FROM proforma_cache WHERE property_id = ?`, propertyID); err != nil {
		return fmt.Errorf("failed to invalidate cache for property %d: %w", propertyID, err)
	}
	return nil
}

func (c *cachedProforma) toDomain() (*domain.ProformaResult, error) {
	salePrice, err := decimal.NewFromString(c.ProjectedSalePrice)
	if err != nil {
		return nil, fmt.Errorf("bad cached projected_sale_price %q: %w", c.ProjectedSalePrice, err)
	}
	proceeds, err := decimal.NewFromString(c.NetSaleProceeds)
	if err != nil {
		return nil, fmt.Errorf("bad cached net_sale_proceeds %q: %w", c.NetSaleProceeds, err)
	}
	return &domain.ProformaResult{
		PropertyID:         c.PropertyID,
		AcquisitionID:      c.AcquisitionID,
		HoldYears:          c.HoldYears,
		GoingInCapRate:     c.GoingInCapRate,
		Year1OpExRatio:     c.Year1OpExRatio,
		LoanConstant:       c.LoanConstant,
		GoingInDSCR:        c.GoingInDSCR,
		GoingInDebtYield:   c.GoingInDebtYield,
		ExitLTV:            c.ExitLTV,
		UnleveredIRR:       c.UnleveredIRR,
		LeveredIRR:         c.LeveredIRR,
		UnleveredEM:        c.UnleveredEM,
		LeveredEM:          c.LeveredEM,
		AvgUnleveredCC:     c.AvgUnleveredCC,
		AvgLeveredCC:       c.AvgLeveredCC,
		ProjectedSalePrice: salePrice,
		NetSaleProceeds:    proceeds,
		GeneratedAt:        c.GeneratedAt,
	}, nil
}
