// Package main is the entry point for the Brickfolio portfolio
// analytics engine. The application ingests property documents,
// computes acquisition proformas and return metrics, scores hold,
// refinance and sell suggestions, and maintains portfolio rollups.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakline/brickfolio/internal/analytics/proforma"
	"github.com/oakline/brickfolio/internal/analytics/suggestion"
	"github.com/oakline/brickfolio/internal/config"
	"github.com/oakline/brickfolio/internal/database"
	"github.com/oakline/brickfolio/internal/ingestion"
	"github.com/oakline/brickfolio/internal/modules/analysis"
	"github.com/oakline/brickfolio/internal/modules/portfolio"
	"github.com/oakline/brickfolio/internal/modules/properties"
	"github.com/oakline/brickfolio/internal/scheduler"
	"github.com/oakline/brickfolio/internal/server"
	"github.com/oakline/brickfolio/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Brickfolio")

	// Databases: durable portfolio data plus a recomputable cache
	portfolioDB, err := database.New(database.Config{
		Path:    cfg.PortfolioDBPath(),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{portfolioDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	// Repositories
	portfolios := portfolio.NewRepository(portfolioDB.Conn())
	props := properties.NewPropertyRepository(portfolioDB.Conn())
	acquisitions := properties.NewAcquisitionRepository(portfolioDB.Conn())
	proformas := properties.NewProformaRepository(portfolioDB.Conn())
	market := properties.NewMarketRepository(portfolioDB.Conn())
	suggestions := properties.NewSuggestionRepository(portfolioDB.Conn())

	// Engines and services
	engineCfg := suggestion.DefaultConfig()
	engineCfg.SellThreshold = cfg.SellThreshold
	engineCfg.WeightProforma = cfg.WeightProforma
	engineCfg.WeightMarket = cfg.WeightMarket
	engineCfg.WeightPortfolio = cfg.WeightPortfolio

	analysisService := analysis.NewService(analysis.Deps{
		Properties:   props,
		Acquisitions: acquisitions,
		Proformas:    proformas,
		Market:       market,
		Suggestions:  suggestions,
		Portfolios:   portfolios,
		Aggregator:   portfolio.NewAggregator(log),
		Calculator:   proforma.NewCalculator(log),
		Engine:       suggestion.NewEngine(engineCfg, log),
		Cache:        analysis.NewProformaCache(cacheDB.Conn(), log),
		Workers:      cfg.AnalysisWorkers,
	}, log)

	ingestionService := ingestion.NewService(portfolios, props, acquisitions, analysisService, log)

	// Nightly refresh keeps suggestions tracking loan amortization and
	// new market captures
	sched := scheduler.New(log)
	refreshJob := scheduler.NewRefreshJob(portfolios, analysisService, log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:         log,
		Config:      cfg,
		PortfolioDB: portfolioDB,
		CacheDB:     cacheDB,
		Ingestion:   ingestionService,
		Analysis:    analysisService,
		Portfolios:  portfolios,
		Properties:  props,
		Proformas:   proformas,
		Market:      market,
		Suggestions: suggestions,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
