package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/oakline/brickfolio/internal/modules/analysis"
	"github.com/oakline/brickfolio/internal/modules/portfolio"
)

// RefreshJob re-analyzes every portfolio so suggestions and rollups
// track drifting loan balances and newly captured market data.
type RefreshJob struct {
	portfolios *portfolio.Repository
	analysis   *analysis.Service
	log        zerolog.Logger
}

// NewRefreshJob creates the nightly refresh job
func NewRefreshJob(portfolios *portfolio.Repository, analysisService *analysis.Service, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		portfolios: portfolios,
		analysis:   analysisService,
		log:        log.With().Str("job", "portfolio_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "portfolio_refresh"
}

// Run re-analyzes all portfolios. Per-property failures are logged and
// skipped so one bad record never stalls the whole refresh.
func (j *RefreshJob) Run() error {
	portfolios, err := j.portfolios.List()
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, p := range portfolios {
		results, err := j.analysis.AnalyzePortfolio(ctx, p.ID, nil)
		if err != nil {
			j.log.Error().Int64("portfolio_id", p.ID).Err(err).Msg("portfolio refresh failed")
			continue
		}
		for _, r := range results {
			if r.Err != nil {
				j.log.Warn().
					Int64("property_id", r.PropertyID).
					Err(r.Err).
					Msg("property skipped during refresh")
			}
		}
	}
	return nil
}
