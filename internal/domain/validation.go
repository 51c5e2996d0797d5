package domain

import "fmt"

// Validate checks the acquisition invariants before any computation.
func (a *AcquisitionAssumptions) Validate() error {
	if !a.PurchasePrice.IsPositive() {
		return &ValidationError{Entity: "acquisition", Field: "purchase_price", Reason: "must be positive"}
	}
	if a.LTV < 0 || a.LTV > 1 {
		return &ValidationError{Entity: "acquisition", Field: "ltv", Reason: fmt.Sprintf("%.4f outside [0,1]", a.LTV)}
	}
	if a.VacancyRate < 0 || a.VacancyRate > 1 {
		return &ValidationError{Entity: "acquisition", Field: "vacancy_immediately_after_purchase", Reason: fmt.Sprintf("%.4f outside [0,1]", a.VacancyRate)}
	}
	if a.ClosingCostPct < 0 || a.ClosingCostPct > 1 {
		return &ValidationError{Entity: "acquisition", Field: "closing_costs", Reason: fmt.Sprintf("%.4f outside [0,1]", a.ClosingCostPct)}
	}
	if a.CostOfSalePct < 0 || a.CostOfSalePct > 1 {
		return &ValidationError{Entity: "acquisition", Field: "cost_of_sale_percentage", Reason: fmt.Sprintf("%.4f outside [0,1]", a.CostOfSalePct)}
	}
	if a.HoldYears <= 0 {
		return &ValidationError{Entity: "acquisition", Field: "hold_period_years", Reason: "must be a positive integer"}
	}
	if a.AmortYears <= 0 {
		return &ValidationError{Entity: "acquisition", Field: "amortization_years", Reason: "must be a positive integer"}
	}
	if a.ExitCapRate <= 0 {
		return &ValidationError{Entity: "acquisition", Field: "exit_cap_rate_expectation", Reason: "must be positive"}
	}
	for field, rate := range map[string]float64{
		"interest_rate":           a.InterestRate,
		"expected_rent_growth":    a.RentGrowth,
		"expected_expense_growth": a.ExpenseGrowth,
		"expected_capex_growth":   a.CapexGrowth,
		"expected_appreciation":   a.Appreciation,
	} {
		if rate <= -1 {
			return &ValidationError{Entity: "acquisition", Field: field, Reason: fmt.Sprintf("%.4f must be greater than -1", rate)}
		}
	}
	return nil
}

// Validate checks the operating snapshot invariants.
func (s *CurrentState) Validate() error {
	if s.VacancyRate < 0 || s.VacancyRate > 1 {
		return &ValidationError{Entity: "current_state", Field: "current_vacancy_rate", Reason: fmt.Sprintf("%.4f outside [0,1]", s.VacancyRate)}
	}
	if s.Value.IsNegative() {
		return &ValidationError{Entity: "current_state", Field: "current_value", Reason: "must not be negative"}
	}
	if s.LoanRate <= -1 {
		return &ValidationError{Entity: "current_state", Field: "current_loan_rate", Reason: "must be greater than -1"}
	}
	if s.LoanBalance.IsPositive() && s.LoanRemainingYears <= 0 {
		return &ValidationError{Entity: "current_state", Field: "current_loan_remaining_years", Reason: "must be positive while a loan balance remains"}
	}
	return nil
}
