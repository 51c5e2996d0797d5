// Package suggestion classifies each property as hold, refinance or
// sell by comparing its actual state against its proforma, its market
// snapshot and its portfolio.
package suggestion

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oakline/brickfolio/internal/analytics/amortization"
	"github.com/oakline/brickfolio/internal/domain"
)

// =============================================================================
// TIER WEIGHTS AND THRESHOLDS
// =============================================================================
// Three independent tiers each produce a signed signal in [-1, +1]:
// negative favors sell/refinance, positive favors hold. Weights are
// renormalized over the tiers that actually have data, so a skipped
// tier never drags the score toward zero.

const (
	// Default tier weights (equal across tiers with data)
	DefaultWeightProforma  = 1.0 / 3.0 // Tier 1: actual vs proforma targets
	DefaultWeightMarket    = 1.0 / 3.0 // Tier 2: actual vs market comparables
	DefaultWeightPortfolio = 1.0 / 3.0 // Tier 3: actual vs portfolio averages

	// Action thresholds on the combined score
	DefaultSellThreshold = -0.30

	// DSCR levels for the distress check
	DistressDSCR = 1.0
	HealthyDSCR  = 1.2

	// Deviation scales: the relative deviation that saturates a signal
	CapRateDeviationScale = 0.02 // 200bps of cap-rate slippage = full signal
	DSCRDeviationScale    = 0.5  // half a turn of DSCR = full signal
	MarketDeviationScale  = 0.25 // 25% off market medians = full signal
	IRRDeviationScale     = 0.05 // 500bps of IRR shortfall = full signal

	// Confidence cap applied when any tier was skipped for missing data
	SkippedTierConfidenceCap = 0.5
)

// Config carries the tunable weights and thresholds. The defaults are a
// reasonable deterministic design, not derived truth; operators may
// override them.
type Config struct {
	WeightProforma  float64
	WeightMarket    float64
	WeightPortfolio float64
	SellThreshold   float64
}

// DefaultConfig returns equal tier weighting and the standard thresholds
func DefaultConfig() Config {
	return Config{
		WeightProforma:  DefaultWeightProforma,
		WeightMarket:    DefaultWeightMarket,
		WeightPortfolio: DefaultWeightPortfolio,
		SellThreshold:   DefaultSellThreshold,
	}
}

// Engine evaluates properties. Stateless; safe for concurrent use.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine creates a suggestion engine
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, log: log.With().Str("component", "suggestion").Logger()}
}

// tierResult is one tier's contribution
type tierResult struct {
	signal    float64
	rationale string
	available bool
	dscrWeak  bool // DSCR is the binding weak metric in this tier
}

// Evaluate produces a suggestion for one property. Deterministic given
// its inputs and the supplied timestamp; the only non-reproducible field
// is the row identifier.
func (e *Engine) Evaluate(
	property *domain.Property,
	proforma *domain.ProformaResult,
	snapshot *domain.MarketSnapshot,
	summary *domain.PortfolioSummary,
	asOf time.Time,
) (*domain.Suggestion, error) {
	if property == nil {
		return nil, &domain.NotFoundError{Entity: "property", ID: "unknown"}
	}
	if proforma == nil {
		return nil, &domain.DataMissingError{PropertyID: property.ID, Input: "proforma_result"}
	}
	if err := property.Current.Validate(); err != nil {
		return nil, err
	}

	actual, err := currentMetrics(property)
	if err != nil {
		return nil, err
	}

	tier1 := e.evaluateProformaTier(actual, proforma)
	tier2 := e.evaluateMarketTier(property, actual, snapshot)
	tier3 := e.evaluatePortfolioTier(actual, proforma, summary)

	score, anySkipped := combine(
		[]tierResult{tier1, tier2, tier3},
		[]float64{e.cfg.WeightProforma, e.cfg.WeightMarket, e.cfg.WeightPortfolio},
	)

	dscrDominant := tier1.dscrWeak || tier3.dscrWeak
	action := e.mapAction(score, dscrDominant)

	confidence := clamp(math.Abs(score), 0, 1)
	if anySkipped {
		confidence = math.Min(confidence, SkippedTierConfidenceCap)
	}

	s := &domain.Suggestion{
		ID:              uuid.NewString(),
		PropertyID:      property.ID,
		Action:          action,
		Score:           round4(score),
		Confidence:      round4(confidence),
		RationaleLevel1: tier1.rationale,
		RationaleLevel2: tier2.rationale,
		RationaleLevel3: tier3.rationale,
		Summary:         summarize(property, action, score, []tierResult{tier1, tier2, tier3}),
		GeneratedAt:     asOf,
	}

	e.log.Debug().
		Int64("property_id", property.ID).
		Str("action", string(action)).
		Float64("score", s.Score).
		Float64("confidence", s.Confidence).
		Msg("Suggestion evaluated")

	return s, nil
}

// actualMetrics is the property's observed performance derived from its
// current operating state.
type actualMetrics struct {
	noi     float64
	value   float64
	capRate float64
	dscr    *float64 // nil when there is no current loan
}

func currentMetrics(p *domain.Property) (*actualMetrics, error) {
	cs := p.Current

	value := cs.Value.InexactFloat64()
	if value <= 0 {
		return nil, &domain.ValidationError{Entity: "current_state", Field: "current_value", Reason: "must be positive for analysis"}
	}

	gross := cs.MonthlyRent.InexactFloat64() * 12
	opex := cs.MonthlyExpenses.InexactFloat64() * 12
	noi := gross*(1-cs.VacancyRate) - opex - cs.AnnualTax.InexactFloat64()

	m := &actualMetrics{
		noi:     noi,
		value:   value,
		capRate: noi / value,
	}

	balance := cs.LoanBalance.InexactFloat64()
	if balance > 0 {
		payment, err := amortization.MonthlyPayment(balance, cs.LoanRate, cs.LoanRemainingYears)
		if err != nil {
			return nil, err
		}
		dscr := noi / (payment * 12)
		m.dscr = &dscr
	}
	return m, nil
}

// evaluateProformaTier compares actual performance against the going-in
// underwriting targets.
func (e *Engine) evaluateProformaTier(actual *actualMetrics, pf *domain.ProformaResult) tierResult {
	capDelta := (actual.capRate - pf.GoingInCapRate) / CapRateDeviationScale
	capSignal := clamp(capDelta, -1, 1)

	signal := capSignal
	dscrWeak := false
	var dscrNote string

	if actual.dscr != nil && pf.GoingInDSCR != nil {
		dscrDelta := (*actual.dscr - *pf.GoingInDSCR) / DSCRDeviationScale
		dscrSignal := clamp(dscrDelta, -1, 1)
		signal = clamp(0.5*capSignal+0.5*dscrSignal, -1, 1)

		if *actual.dscr < DistressDSCR && *pf.GoingInDSCR >= HealthyDSCR {
			// Coverage collapsed relative to underwriting: distress
			signal = math.Min(signal, -0.8)
			dscrWeak = true
			dscrNote = fmt.Sprintf(" Debt coverage has fallen to %.2fx against an underwritten %.2fx.", *actual.dscr, *pf.GoingInDSCR)
		} else if dscrSignal < -0.5 && capSignal > -0.25 {
			// Coverage is the weak metric while the asset itself earns
			dscrWeak = true
			dscrNote = fmt.Sprintf(" DSCR %.2fx trails the %.2fx target.", *actual.dscr, *pf.GoingInDSCR)
		}
	}

	rationale := fmt.Sprintf(
		"Current cap rate %.2f%% vs going-in %.2f%% (NOI %.0f on value %.0f).%s",
		actual.capRate*100, pf.GoingInCapRate*100, actual.noi, actual.value, dscrNote,
	)
	return tierResult{signal: signal, rationale: strings.TrimSpace(rationale), available: true, dscrWeak: dscrWeak}
}

// evaluateMarketTier compares rent and value per square foot against the
// snapshot medians. A missing snapshot skips the tier; it is never
// scored as a neutral zero.
func (e *Engine) evaluateMarketTier(p *domain.Property, actual *actualMetrics, snap *domain.MarketSnapshot) tierResult {
	if snap == nil {
		return tierResult{
			available: false,
			rationale: "insufficient_data: no market snapshot available for this property's region; market tier skipped",
		}
	}
	if p.SquareFeet <= 0 || snap.MedianRentPSF <= 0 || snap.MedianSalePSF <= 0 {
		return tierResult{
			available: false,
			rationale: "insufficient_data: market snapshot or square footage incomplete; market tier skipped",
		}
	}

	sf := float64(p.SquareFeet)
	rentPSF := p.Current.MonthlyRent.InexactFloat64() * 12 / sf
	pricePSF := actual.value / sf

	// Rent below the market median is recoverable upside (hold); a
	// price above the median is a favorable exit (sell).
	rentGap := (rentPSF - snap.MedianRentPSF) / snap.MedianRentPSF
	priceGap := (pricePSF - snap.MedianSalePSF) / snap.MedianSalePSF

	rentSignal := clamp(-rentGap/MarketDeviationScale, -1, 1)
	priceSignal := clamp(-priceGap/MarketDeviationScale, -1, 1)
	signal := clamp(0.5*rentSignal+0.5*priceSignal, -1, 1)

	rationale := fmt.Sprintf(
		"Rent $%.2f/sf vs market median $%.2f/sf (%+.1f%%); value $%.0f/sf vs median $%.0f/sf (%+.1f%%).",
		rentPSF, snap.MedianRentPSF, rentGap*100, pricePSF, snap.MedianSalePSF, priceGap*100,
	)
	return tierResult{signal: signal, rationale: rationale, available: true}
}

// evaluatePortfolioTier compares the property's IRR and coverage against
// the portfolio averages.
func (e *Engine) evaluatePortfolioTier(actual *actualMetrics, pf *domain.ProformaResult, summary *domain.PortfolioSummary) tierResult {
	if summary == nil || summary.PropertyCount == 0 || summary.AvgIRRTarget == nil {
		return tierResult{
			available: false,
			rationale: "insufficient_data: portfolio has no aggregated members to compare against; portfolio tier skipped",
		}
	}

	irrGap := (pf.LeveredIRR - *summary.AvgIRRTarget) / IRRDeviationScale
	irrSignal := clamp(irrGap, -1, 1)

	signal := irrSignal
	dscrWeak := false
	var dscrNote string
	if actual.dscr != nil && summary.AvgDSCR != nil {
		dscrGap := (*actual.dscr - *summary.AvgDSCR) / DSCRDeviationScale
		dscrSignal := clamp(dscrGap, -1, 1)
		signal = clamp(0.5*irrSignal+0.5*dscrSignal, -1, 1)

		// Coverage is the binding constraint while value and IRR hold
		// up: a debt restructuring can solve this without a sale.
		if dscrSignal < -0.5 && irrSignal > -0.25 {
			dscrWeak = true
			dscrNote = fmt.Sprintf(" Coverage %.2fx lags the portfolio average %.2fx while returns remain competitive.", *actual.dscr, *summary.AvgDSCR)
		}
	}

	rationale := fmt.Sprintf(
		"Target IRR %.2f%% vs portfolio average %.2f%% across %d properties.%s",
		pf.LeveredIRR*100, *summary.AvgIRRTarget*100, summary.PropertyCount, dscrNote,
	)
	return tierResult{signal: signal, rationale: strings.TrimSpace(rationale), available: true, dscrWeak: dscrWeak}
}

// combine renormalizes weights over the tiers with data and returns the
// weighted score plus whether any tier was skipped.
func combine(tiers []tierResult, weights []float64) (float64, bool) {
	var weighted, totalWeight float64
	anySkipped := false
	for i, tier := range tiers {
		if !tier.available {
			anySkipped = true
			continue
		}
		weighted += tier.signal * weights[i]
		totalWeight += weights[i]
	}
	if totalWeight == 0 {
		return 0, anySkipped
	}
	return weighted / totalWeight, anySkipped
}

// mapAction converts the combined score to an action. Strict thresholds
// give the deterministic tie-break bias toward inaction:
// hold > refinance > sell.
func (e *Engine) mapAction(score float64, dscrDominant bool) domain.SuggestionAction {
	switch {
	case score < e.cfg.SellThreshold:
		return domain.ActionSell
	case score < 0 && dscrDominant:
		return domain.ActionRefinance
	default:
		return domain.ActionHold
	}
}

// summarize builds the combined narrative from the tier contributions,
// strongest deviation first for the tiers that had data.
func summarize(p *domain.Property, action domain.SuggestionAction, score float64, tiers []tierResult) string {
	names := []string{"performance vs underwriting", "market comparables", "portfolio positioning"}

	type contribution struct {
		name   string
		signal float64
	}
	var available []contribution
	var skipped []string
	for i, tier := range tiers {
		if tier.available {
			available = append(available, contribution{names[i], tier.signal})
		} else {
			skipped = append(skipped, names[i])
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		return math.Abs(available[i].signal) > math.Abs(available[j].signal)
	})

	var b strings.Builder
	var verb string
	switch action {
	case domain.ActionSell:
		verb = "Sell"
	case domain.ActionRefinance:
		verb = "Refinance"
	case domain.ActionHold:
		verb = "Hold"
	}
	fmt.Fprintf(&b, "%s %s (score %+.2f).", verb, p.Name, score)
	for _, c := range available {
		fmt.Fprintf(&b, " %s: %+.2f.", c.name, c.signal)
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&b, " Skipped for missing data: %s.", strings.Join(skipped, ", "))
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
