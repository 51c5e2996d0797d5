// Package proforma orchestrates amortization, cash-flow projection,
// exit-sale math and IRR solving into a complete projection for one
// property. The computation is all-or-nothing: if any required metric
// fails, no partial result is returned.
package proforma

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oakline/brickfolio/internal/analytics/amortization"
	"github.com/oakline/brickfolio/internal/analytics/cashflow"
	"github.com/oakline/brickfolio/internal/analytics/irr"
	"github.com/oakline/brickfolio/internal/domain"
)

// Calculator computes proforma results. It is stateless and safe for
// concurrent use across properties.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a proforma calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{log: log.With().Str("component", "proforma").Logger()}
}

// Compute builds the full proforma for a property from its acquisition
// assumptions. Market data plays no part here; market-dependent
// comparisons belong to the suggestion engine.
func (c *Calculator) Compute(property *domain.Property, a *domain.AcquisitionAssumptions, asOf time.Time) (*domain.ProformaResult, error) {
	if a == nil {
		return nil, &domain.DataMissingError{PropertyID: property.ID, Input: "acquisition_assumptions"}
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	purchase := a.PurchasePrice.InexactFloat64()
	loanAmount := purchase * a.LTV
	closingCosts := purchase * a.ClosingCostPct
	originationFee := loanAmount * a.OriginationFeePct

	var schedule []amortization.Entry
	if loanAmount > 0 {
		var err error
		schedule, err = amortization.ComputeSchedule(loanAmount, a.InterestRate, a.AmortYears)
		if err != nil {
			return nil, err
		}
	}

	rows, err := cashflow.Project(a, schedule)
	if err != nil {
		return nil, err
	}
	year1 := rows[0]
	exitYear := rows[len(rows)-1]

	result := &domain.ProformaResult{
		PropertyID:    property.ID,
		AcquisitionID: a.ID,
		HoldYears:     a.HoldYears,
		GeneratedAt:   asOf,
	}

	result.GoingInCapRate = round6(year1.NOI / purchase)
	if year1.GrossIncome == 0 {
		return nil, &domain.ComputationError{PropertyID: property.ID, Metric: "year1_op_ex_ratio", Err: fmt.Errorf("year-1 gross income is zero")}
	}
	result.Year1OpExRatio = round6(year1.OperatingExpenses / year1.GrossIncome)

	if loanAmount > 0 {
		if year1.DebtService == 0 {
			return nil, &domain.ComputationError{PropertyID: property.ID, Metric: "going_in_dscr", Err: fmt.Errorf("loan amount %.2f with zero debt service", loanAmount)}
		}
		result.GoingInDSCR = ptr(round6(year1.NOI / year1.DebtService))
		result.GoingInDebtYield = ptr(round6(year1.NOI / loanAmount))

		constant, err := amortization.LoanConstant(a.InterestRate, a.AmortYears)
		if err != nil {
			return nil, err
		}
		result.LoanConstant = ptr(round6(constant))
	}

	// Exit sale: capitalize the exit-year NOI at the expected exit cap
	salePrice := exitYear.NOI / a.ExitCapRate
	if salePrice <= 0 {
		return nil, &domain.ComputationError{PropertyID: property.ID, Metric: "projected_sale_price", Err: fmt.Errorf("exit-year NOI %.2f capitalizes to a non-positive price", exitYear.NOI)}
	}
	balanceAtExit := remainingBalance(schedule, a.HoldYears*12)
	grossProceedsAfterCosts := salePrice * (1 - a.CostOfSalePct)
	netProceeds := grossProceedsAfterCosts - balanceAtExit

	if loanAmount > 0 {
		result.ExitLTV = ptr(round6(balanceAtExit / salePrice))
	}
	result.ProjectedSalePrice = decimal.NewFromFloat(salePrice).Round(2)
	result.NetSaleProceeds = decimal.NewFromFloat(netProceeds).Round(2)

	// Equity series: year 0 carries the outlay, the final year carries
	// the sale. The unlevered basis is the all-cash purchase; the
	// levered basis is the equity slice plus financing costs at close.
	unleveredBasis := purchase + closingCosts
	leveredEquity := purchase*(1-a.LTV) + closingCosts + originationFee

	unleveredSeries := make([]float64, a.HoldYears+1)
	leveredSeries := make([]float64, a.HoldYears+1)
	unleveredSeries[0] = -unleveredBasis
	leveredSeries[0] = -leveredEquity
	for i, row := range rows {
		unleveredSeries[i+1] = row.UnleveredCF
		leveredSeries[i+1] = row.LeveredCF
	}
	unleveredSeries[a.HoldYears] += grossProceedsAfterCosts
	leveredSeries[a.HoldYears] += netProceeds

	unleveredIRR, err := irr.Solve(unleveredSeries)
	if err != nil {
		return nil, &domain.ComputationError{PropertyID: property.ID, Metric: "unlevered_irr", Err: err}
	}
	leveredIRR, err := irr.Solve(leveredSeries)
	if err != nil {
		return nil, &domain.ComputationError{PropertyID: property.ID, Metric: "levered_irr", Err: err}
	}
	result.UnleveredIRR = round6(unleveredIRR)
	result.LeveredIRR = round6(leveredIRR)

	result.UnleveredEM = round6(equityMultiple(unleveredSeries))
	result.LeveredEM = round6(equityMultiple(leveredSeries))

	if leveredEquity == 0 {
		return nil, &domain.ComputationError{PropertyID: property.ID, Metric: "avg_levered_coc", Err: fmt.Errorf("initial equity is zero")}
	}
	var sumUnlevered, sumLevered float64
	for _, row := range rows {
		sumUnlevered += row.UnleveredCF
		sumLevered += row.LeveredCF
	}
	holdYears := float64(a.HoldYears)
	result.AvgUnleveredCC = round6(sumUnlevered / holdYears / unleveredBasis)
	result.AvgLeveredCC = round6(sumLevered / holdYears / leveredEquity)

	c.log.Debug().
		Int64("property_id", property.ID).
		Float64("going_in_cap_rate", result.GoingInCapRate).
		Float64("levered_irr", result.LeveredIRR).
		Msg("Proforma computed")

	return result, nil
}

// remainingBalance reads the outstanding balance at the given month,
// zero once the schedule is exhausted.
func remainingBalance(schedule []amortization.Entry, month int) float64 {
	if len(schedule) == 0 {
		return 0
	}
	if month >= len(schedule) {
		return 0
	}
	if month <= 0 {
		return schedule[0].EndingBalance + schedule[0].PrincipalPortion
	}
	return schedule[month-1].EndingBalance
}

// equityMultiple is total distributions over total invested, sale
// proceeds included.
func equityMultiple(series []float64) float64 {
	var invested, returned float64
	for _, cf := range series {
		if cf < 0 {
			invested += -cf
		} else {
			returned += cf
		}
	}
	if invested == 0 {
		return 0
	}
	return returned / invested
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func ptr(v float64) *float64 { return &v }
