// Package cashflow projects year-by-year operating cash flows over a
// hold period from acquisition assumptions and an amortization schedule.
package cashflow

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/oakline/brickfolio/internal/analytics/amortization"
	"github.com/oakline/brickfolio/internal/domain"
)

// YearRow is one projected operating year. Losses and expenses are
// positive magnitudes; they are subtracted when composing NOI.
type YearRow struct {
	Year              int     `json:"year"` // 1-based
	GrossIncome       float64 `json:"gross_income"`
	VacancyLoss       float64 `json:"vacancy_loss"`
	OtherIncome       float64 `json:"other_income"`
	OperatingExpenses float64 `json:"operating_expenses"`
	Capex             float64 `json:"capex"`
	NOI               float64 `json:"noi"`
	UnleveredCF       float64 `json:"unlevered_cf"`
	DebtService       float64 `json:"debt_service"`
	LeveredCF         float64 `json:"levered_cf"`
}

// Project builds the annual series for years 1..HoldYears. Income,
// expenses and capex compound annually from their year-1 bases:
// value_n = value_1 * (1+g)^(n-1). Debt service for year n is the sum
// of the 12 monthly payments ending at month 12n; once the schedule is
// exhausted the loan is retired and debt service is zero.
func Project(a *domain.AcquisitionAssumptions, schedule []amortization.Entry) ([]YearRow, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	gross1 := a.MonthlyRent.InexactFloat64() * 12
	other1 := a.MonthlyOtherIncome.InexactFloat64() * 12
	opex1 := a.MonthlyExpenses.InexactFloat64() * 12
	capex1 := a.AnnualCapex.InexactFloat64()

	rows := make([]YearRow, a.HoldYears)
	for year := 1; year <= a.HoldYears; year++ {
		gross := compound(gross1, a.RentGrowth, year)
		other := compound(other1, a.RentGrowth, year)
		opex := compound(opex1, a.ExpenseGrowth, year)
		capex := compound(capex1, a.CapexGrowth, year)

		vacancyLoss := gross * a.VacancyRate
		noi := gross - vacancyLoss + other - opex
		unlevered := noi - capex
		debtService := annualDebtService(schedule, year)

		rows[year-1] = YearRow{
			Year:              year,
			GrossIncome:       gross,
			VacancyLoss:       vacancyLoss,
			OtherIncome:       other,
			OperatingExpenses: opex,
			Capex:             capex,
			NOI:               noi,
			UnleveredCF:       unlevered,
			DebtService:       debtService,
			LeveredCF:         unlevered - debtService,
		}
	}
	return rows, nil
}

// annualDebtService sums the 12 monthly payments of the given year.
func annualDebtService(schedule []amortization.Entry, year int) float64 {
	start := (year - 1) * 12
	if start >= len(schedule) {
		return 0
	}
	end := start + 12
	if end > len(schedule) {
		end = len(schedule)
	}
	payments := make([]float64, 0, 12)
	for _, e := range schedule[start:end] {
		payments = append(payments, e.Payment)
	}
	return floats.Sum(payments)
}

func compound(base, growth float64, year int) float64 {
	return base * math.Pow(1+growth, float64(year-1))
}
