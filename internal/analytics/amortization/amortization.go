// Package amortization computes level-payment loan schedules and loan
// constants from principal, rate and term.
package amortization

import (
	"fmt"
	"math"

	"github.com/oakline/brickfolio/internal/domain"
)

// Entry is one month of a fully amortizing schedule
type Entry struct {
	PeriodIndex      int     `json:"period_index"` // 1-based month number
	Payment          float64 `json:"payment"`
	InterestPortion  float64 `json:"interest_portion"`
	PrincipalPortion float64 `json:"principal_portion"`
	EndingBalance    float64 `json:"ending_balance"`
}

// MonthlyPayment returns the constant monthly payment that fully
// amortizes the loan. A zero rate falls back to straight-line principal
// reduction.
func MonthlyPayment(principal, annualRate float64, amortYears int) (float64, error) {
	if err := validate(principal, annualRate, amortYears); err != nil {
		return 0, err
	}
	n := float64(amortYears * 12)
	if annualRate == 0 {
		return principal / n, nil
	}
	r := annualRate / 12
	return principal * r / (1 - math.Pow(1+r, -n)), nil
}

// ComputeSchedule builds the month-by-month schedule, one entry per
// month, length amortYears*12. Ending balances come from the closed-form
// remaining-balance expression so the final balance is exactly zero and
// interest/principal splits stay consistent with the balance path.
func ComputeSchedule(principal, annualRate float64, amortYears int) ([]Entry, error) {
	payment, err := MonthlyPayment(principal, annualRate, amortYears)
	if err != nil {
		return nil, err
	}

	months := amortYears * 12
	r := annualRate / 12
	schedule := make([]Entry, months)

	prevBalance := principal
	for k := 1; k <= months; k++ {
		balance := balanceAfter(principal, r, months, k)
		principalPortion := prevBalance - balance
		schedule[k-1] = Entry{
			PeriodIndex:      k,
			Payment:          payment,
			InterestPortion:  payment - principalPortion,
			PrincipalPortion: principalPortion,
			EndingBalance:    balance,
		}
		prevBalance = balance
	}
	return schedule, nil
}

// LoanConstant returns annual debt service per unit of principal.
func LoanConstant(annualRate float64, amortYears int) (float64, error) {
	payment, err := MonthlyPayment(1, annualRate, amortYears)
	if err != nil {
		return 0, err
	}
	return payment * 12, nil
}

// balanceAfter is the outstanding balance after k of n payments.
func balanceAfter(principal, monthlyRate float64, n, k int) float64 {
	if k >= n {
		return 0
	}
	if monthlyRate == 0 {
		return principal * (1 - float64(k)/float64(n))
	}
	growthN := math.Pow(1+monthlyRate, float64(n))
	growthK := math.Pow(1+monthlyRate, float64(k))
	return principal * (growthN - growthK) / (growthN - 1)
}

func validate(principal, annualRate float64, amortYears int) error {
	if principal <= 0 {
		return &domain.ValidationError{Entity: "loan", Field: "principal", Reason: fmt.Sprintf("%.2f must be positive", principal)}
	}
	if amortYears <= 0 {
		return &domain.ValidationError{Entity: "loan", Field: "amortization_years", Reason: "must be positive"}
	}
	if annualRate <= -1 {
		return &domain.ValidationError{Entity: "loan", Field: "interest_rate", Reason: fmt.Sprintf("%.4f must be greater than -1", annualRate)}
	}
	return nil
}
