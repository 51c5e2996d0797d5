// Package analysis orchestrates the full evaluation cycle for
// properties: proforma computation, suggestion scoring and portfolio
// summary rollups, with a cache in front of the expensive math.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/oakline/brickfolio/internal/analytics/proforma"
	"github.com/oakline/brickfolio/internal/analytics/suggestion"
	"github.com/oakline/brickfolio/internal/domain"
	"github.com/oakline/brickfolio/internal/modules/portfolio"
	"github.com/oakline/brickfolio/internal/modules/properties"
)

// summaryWriteRetries bounds optimistic-write retries before the
// conflict surfaces to the caller
const summaryWriteRetries = 3

// Deps carries the service's collaborators
type Deps struct {
	Properties   *properties.PropertyRepository
	Acquisitions *properties.AcquisitionRepository
	Proformas    *properties.ProformaRepository
	Market       *properties.MarketRepository
	Suggestions  *properties.SuggestionRepository
	Portfolios   *portfolio.Repository
	Aggregator   *portfolio.Aggregator
	Calculator   *proforma.Calculator
	Engine       *suggestion.Engine
	Cache        *ProformaCache
	Workers      int
}

// Service runs property analyses
type Service struct {
	deps Deps
	pool *WorkerPool
	log  zerolog.Logger
}

// NewService creates an analysis service
func NewService(deps Deps, log zerolog.Logger) *Service {
	return &Service{
		deps: deps,
		pool: NewWorkerPool(deps.Workers),
		log:  log.With().Str("component", "analysis").Logger(),
	}
}

// AnalyzeProperty runs the full cycle for one property: compute (or
// fetch) its proforma, score a suggestion against the latest market
// snapshot and portfolio summary, persist both, then refresh the
// portfolio rollup.
func (s *Service) AnalyzeProperty(ctx context.Context, propertyID int64) (*domain.Suggestion, error) {
	sugg, portfolioID, err := s.analyzeOne(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if _, err := s.RecomputeSummary(portfolioID); err != nil {
		return nil, err
	}
	return sugg, nil
}

// DeleteProperty removes a property with its dependent records, drops
// its cached proformas and refreshes the portfolio rollup.
func (s *Service) DeleteProperty(ctx context.Context, propertyID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	property, err := s.deps.Properties.GetByID(propertyID)
	if err != nil {
		return err
	}
	if err := s.deps.Properties.Delete(propertyID); err != nil {
		return err
	}
	if err := s.deps.Cache.InvalidateProperty(propertyID); err != nil {
		s.log.Warn().
			Err(err).
			Int64("property_id", propertyID).
			Msg("Failed to drop cached proformas")
	}
	_, err = s.RecomputeSummary(property.PortfolioID)
	return err
}

func (s *Service) analyzeOne(ctx context.Context, propertyID int64) (*domain.Suggestion, int64, error) {
	property, err := s.deps.Properties.GetByID(propertyID)
	if err != nil {
		return nil, 0, err
	}

	pf, err := s.ComputeProforma(ctx, property)
	if err != nil {
		return nil, 0, err
	}

	snapshot, err := s.deps.Market.GetLatestByProperty(propertyID)
	if err != nil {
		return nil, 0, err
	}
	summary, err := s.deps.Portfolios.GetSummary(property.PortfolioID)
	if err != nil {
		return nil, 0, err
	}

	sugg, err := s.deps.Engine.Evaluate(property, pf, snapshot, summary, time.Now().UTC())
	if err != nil {
		return nil, 0, err
	}
	if err := s.deps.Suggestions.Append(sugg); err != nil {
		return nil, 0, err
	}

	s.log.Info().
		Int64("property_id", propertyID).
		Str("action", string(sugg.Action)).
		Float64("score", sugg.Score).
		Msg("property analyzed")

	return sugg, property.PortfolioID, nil
}

// ComputeProforma computes and persists a property's proforma from its
// latest assumptions generation, consulting the cache first. The cache
// entry must match both the key and the property to count as a hit.
func (s *Service) ComputeProforma(ctx context.Context, property *domain.Property) (*domain.ProformaResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acq, err := s.deps.Acquisitions.GetLatestByProperty(property.ID)
	if err != nil {
		return nil, err
	}

	key, err := s.deps.Cache.Key(acq)
	if err != nil {
		return nil, err
	}

	pf, err := s.deps.Cache.Get(key)
	if err != nil {
		s.log.Warn().Int64("property_id", property.ID).Err(err).Msg("cache read failed, computing fresh")
		pf = nil
	}

	if pf == nil || pf.PropertyID != property.ID || pf.AcquisitionID != acq.ID {
		pf, err = s.deps.Calculator.Compute(property, acq, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if err := s.deps.Cache.Put(key, pf); err != nil {
			s.log.Warn().Int64("property_id", property.ID).Err(err).Msg("cache write failed")
		}
	} else {
		s.log.Debug().Int64("property_id", property.ID).Str("key", key).Msg("proforma cache hit")
	}

	if err := s.deps.Proformas.Replace(pf); err != nil {
		return nil, err
	}
	return pf, nil
}

// AnalyzePortfolio analyzes every owned property in a portfolio in
// parallel, then refreshes the summary once. progress may be nil.
func (s *Service) AnalyzePortfolio(ctx context.Context, portfolioID int64, progress ProgressFunc) ([]BatchResult, error) {
	if _, err := s.deps.Portfolios.GetByID(portfolioID); err != nil {
		return nil, err
	}

	props, err := s.deps.Properties.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, p := range props {
		if p.Ownership == domain.OwnershipOwned {
			ids = append(ids, p.ID)
		}
	}

	results := s.pool.AnalyzeBatch(ctx, ids, func(ctx context.Context, id int64) (*domain.Suggestion, error) {
		sugg, _, err := s.analyzeOne(ctx, id)
		return sugg, err
	}, progress)

	if _, err := s.RecomputeSummary(portfolioID); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.log.Info().
		Int64("portfolio_id", portfolioID).
		Int("analyzed", len(results)-failed).
		Int("failed", failed).
		Msg("portfolio analysis complete")

	return results, nil
}

// RecomputeSummary rebuilds a portfolio's rollup from current data.
// Writes for the same portfolio are serialized through the aggregator
// lock; the optimistic version check still guards against writers from
// other processes and is retried with fresh reads.
func (s *Service) RecomputeSummary(portfolioID int64) (*domain.PortfolioSummary, error) {
	lock := s.deps.Aggregator.Lock(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < summaryWriteRetries; attempt++ {
		current, err := s.deps.Portfolios.GetSummary(portfolioID)
		if err != nil {
			return nil, err
		}

		props, err := s.deps.Properties.ListByPortfolio(portfolioID)
		if err != nil {
			return nil, err
		}
		proformas, err := s.deps.Proformas.MapByPortfolio(portfolioID)
		if err != nil {
			return nil, err
		}

		summary := s.deps.Aggregator.Recompute(portfolioID, props, proformas, time.Now().UTC())
		err = s.deps.Portfolios.UpsertSummary(summary, current.Version)
		if err == nil {
			return summary, nil
		}

		var conflict *domain.AggregationConflictError
		if !errors.As(err, &conflict) {
			return nil, err
		}
		lastErr = err
		s.log.Debug().Int64("portfolio_id", portfolioID).Int("attempt", attempt+1).Msg("summary write conflicted, retrying")
	}
	return nil, lastErr
}
