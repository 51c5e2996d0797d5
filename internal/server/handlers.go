package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/oakline/brickfolio/internal/domain"
	"github.com/oakline/brickfolio/internal/ingestion"
	"github.com/oakline/brickfolio/internal/modules/analysis"
	"github.com/oakline/brickfolio/internal/modules/portfolio"
	"github.com/oakline/brickfolio/internal/modules/properties"
)

// Handlers holds the API endpoint implementations
type Handlers struct {
	ingestion   *ingestion.Service
	analysis    *analysis.Service
	portfolios  *portfolio.Repository
	properties  *properties.PropertyRepository
	proformas   *properties.ProformaRepository
	market      *properties.MarketRepository
	suggestions *properties.SuggestionRepository
	log         zerolog.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(
	ingestionService *ingestion.Service,
	analysisService *analysis.Service,
	portfolios *portfolio.Repository,
	props *properties.PropertyRepository,
	proformas *properties.ProformaRepository,
	market *properties.MarketRepository,
	suggestions *properties.SuggestionRepository,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		ingestion:   ingestionService,
		analysis:    analysisService,
		portfolios:  portfolios,
		properties:  props,
		proformas:   proformas,
		market:      market,
		suggestions: suggestions,
		log:         log.With().Str("component", "handlers").Logger(),
	}
}

// HandleIngestProperty accepts a property document and runs the
// ingestion pipeline
func (h *Handlers) HandleIngestProperty(w http.ResponseWriter, r *http.Request) {
	var doc ingestion.PropertyDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.writeError(w, &domain.ValidationError{Entity: "property_document", Field: "json", Reason: err.Error()})
		return
	}

	result, err := h.ingestion.Ingest(r.Context(), &doc)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HandleGetProperty returns a property with its current state
func (h *Handlers) HandleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "propertyID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	property, err := h.properties.GetByID(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, property)
}

// HandleDeleteProperty removes a property and all dependent records
func (h *Handlers) HandleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "propertyID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Drops cached proformas and refreshes the rollup alongside the row
	if err := h.analysis.DeleteProperty(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAnalyzeProperty runs a full analysis cycle for one property
func (h *Handlers) HandleAnalyzeProperty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "propertyID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	suggestion, err := h.analysis.AnalyzeProperty(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// HandleGetProforma returns the stored proforma for a property
func (h *Handlers) HandleGetProforma(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "propertyID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.properties.GetByID(id); err != nil {
		h.writeError(w, err)
		return
	}
	pf, err := h.proformas.GetByProperty(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pf == nil {
		h.writeError(w, &domain.DataMissingError{PropertyID: id, Input: "proforma_result"})
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// HandleListSuggestions returns suggestion history, newest first
func (h *Handlers) HandleListSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "propertyID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.properties.GetByID(id); err != nil {
		h.writeError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, &domain.ValidationError{Entity: "request", Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
	}

	history, err := h.suggestions.ListByProperty(id, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if history == nil {
		history = []domain.Suggestion{}
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleAppendMarketSnapshot records a new market snapshot for a
// property
func (h *Handlers) HandleAppendMarketSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "propertyID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.properties.GetByID(id); err != nil {
		h.writeError(w, err)
		return
	}

	var snapshot domain.MarketSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		h.writeError(w, &domain.ValidationError{Entity: "market_snapshot", Field: "json", Reason: err.Error()})
		return
	}
	snapshot.PropertyID = id
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now().UTC()
	}

	if err := h.market.Append(&snapshot); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// HandleGetMarketSnapshot returns the latest snapshot for a property
func (h *Handlers) HandleGetMarketSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "propertyID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.properties.GetByID(id); err != nil {
		h.writeError(w, err)
		return
	}
	snapshot, err := h.market.GetLatestByProperty(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if snapshot == nil {
		h.writeError(w, &domain.DataMissingError{PropertyID: id, Input: "market_snapshot"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleListPortfolios returns all portfolios
func (h *Handlers) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolios.List()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if portfolios == nil {
		portfolios = []domain.Portfolio{}
	}
	writeJSON(w, http.StatusOK, portfolios)
}

// HandleGetSummary returns a portfolio's rollup
func (h *Handlers) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "portfolioID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.portfolios.GetByID(id); err != nil {
		h.writeError(w, err)
		return
	}
	summary, err := h.portfolios.GetSummary(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleListProperties returns a portfolio's properties
func (h *Handlers) HandleListProperties(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "portfolioID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.portfolios.GetByID(id); err != nil {
		h.writeError(w, err)
		return
	}
	props, err := h.properties.ListByPortfolio(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if props == nil {
		props = []domain.Property{}
	}
	writeJSON(w, http.StatusOK, props)
}

// HandleAnalyzePortfolio re-analyzes every owned property in a
// portfolio and returns per-property outcomes
func (h *Handlers) HandleAnalyzePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "portfolioID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	results, err := h.analysis.AnalyzePortfolio(r.Context(), id, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	type itemResponse struct {
		PropertyID int64              `json:"property_id"`
		Suggestion *domain.Suggestion `json:"suggestion,omitempty"`
		Error      string             `json:"error,omitempty"`
	}
	response := make([]itemResponse, 0, len(results))
	for _, result := range results {
		item := itemResponse{PropertyID: result.PropertyID, Suggestion: result.Suggestion}
		if result.Err != nil {
			item.Error = result.Err.Error()
		}
		response = append(response, item)
	}
	writeJSON(w, http.StatusOK, response)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Entity: "request", Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}

// writeError maps domain errors onto HTTP statuses
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr  *domain.ValidationError
		notFoundErr    *domain.NotFoundError
		dataMissingErr *domain.DataMissingError
		computationErr *domain.ComputationError
		conflictErr    *domain.AggregationConflictError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &dataMissingErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &computationErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
