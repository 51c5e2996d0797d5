// Package portfolio rolls individual property metrics up into
// portfolio-level summaries and persists them.
package portfolio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/oakline/brickfolio/internal/analytics/amortization"
	"github.com/oakline/brickfolio/internal/domain"
)

// Aggregator computes portfolio summaries. Recomputes for the same
// portfolio are serialized through a per-portfolio lock so concurrent
// analyses cannot interleave their read-compute-write cycles.
type Aggregator struct {
	log zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewAggregator creates a portfolio aggregator
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log:   log.With().Str("component", "aggregator").Logger(),
		locks: make(map[int64]*sync.Mutex),
	}
}

// Lock returns the mutex serializing summary writes for a portfolio
func (a *Aggregator) Lock(portfolioID int64) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[portfolioID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[portfolioID] = lock
	}
	return lock
}

// Recompute builds a fresh summary from a portfolio's owned properties
// and their proformas. Potential properties are excluded: they have no
// current state to aggregate. All aggregate fields stay nil when no
// owned properties exist.
func (a *Aggregator) Recompute(portfolioID int64, properties []domain.Property, proformas map[int64]*domain.ProformaResult, asOf time.Time) *domain.PortfolioSummary {
	summary := &domain.PortfolioSummary{
		PortfolioID: portfolioID,
		UpdatedAt:   asOf,
	}

	totalValue := decimal.Zero
	totalDebt := decimal.Zero

	var yields []float64  // current NOI / current value
	var targets []float64 // underwritten levered IRR
	var dscrs []float64   // current NOI / current annual debt service
	var nois []float64

	for i := range properties {
		p := &properties[i]
		if p.Ownership != domain.OwnershipOwned {
			continue
		}
		summary.PropertyCount++

		totalValue = totalValue.Add(p.Current.Value)
		totalDebt = totalDebt.Add(p.Current.LoanBalance)

		noi := currentAnnualNOI(&p.Current)
		nois = append(nois, noi)

		if value, _ := p.Current.Value.Float64(); value > 0 {
			yields = append(yields, noi/value)
		}

		if balance, _ := p.Current.LoanBalance.Float64(); balance > 0 && p.Current.LoanRemainingYears > 0 {
			payment, err := amortization.MonthlyPayment(balance, p.Current.LoanRate, p.Current.LoanRemainingYears)
			if err != nil {
				a.log.Warn().Int64("property_id", p.ID).Err(err).Msg("skipping DSCR for property with bad loan terms")
			} else if payment > 0 {
				dscrs = append(dscrs, noi/(payment*12))
			}
		}

		if pf, ok := proformas[p.ID]; ok && pf != nil {
			targets = append(targets, pf.LeveredIRR)
		}
	}

	if summary.PropertyCount == 0 {
		a.log.Debug().Int64("portfolio_id", portfolioID).Msg("no owned properties, summary left empty")
		return summary
	}

	summary.TotalValue = &totalValue
	summary.TotalDebt = &totalDebt
	equity := totalValue.Sub(totalDebt)
	summary.TotalEquity = &equity

	if value, _ := totalValue.Float64(); value > 0 {
		debt, _ := totalDebt.Float64()
		summary.AvgLTV = ptr(debt / value)
	}

	if len(yields) > 0 {
		summary.AvgIRRActual = ptr(stat.Mean(yields, nil))
	}
	if len(dscrs) > 0 {
		summary.AvgDSCR = ptr(stat.Mean(dscrs, nil))
	}
	if len(targets) > 0 {
		mean := stat.Mean(targets, nil)
		summary.AvgIRRTarget = ptr(mean)
		summary.VarianceIRR = ptr(stat.MomentAbout(2, targets, mean, nil))
	}
	if len(nois) > 0 {
		summary.VarianceNOI = ptr(stat.MomentAbout(2, nois, stat.Mean(nois, nil), nil))
	}

	a.log.Debug().
		Int64("portfolio_id", portfolioID).
		Int("properties", summary.PropertyCount).
		Msg("portfolio summary recomputed")

	return summary
}

// currentAnnualNOI derives the trailing annual NOI from the operating
// snapshot. Rent and expenses are monthly, tax is annual.
func currentAnnualNOI(s *domain.CurrentState) float64 {
	rent, _ := s.MonthlyRent.Float64()
	expenses, _ := s.MonthlyExpenses.Float64()
	tax, _ := s.AnnualTax.Float64()
	return rent*12*(1-s.VacancyRate) - expenses*12 - tax
}

func ptr(v float64) *float64 { return &v }
