package domain

import "fmt"

// ValidationError indicates malformed or out-of-domain input. It is
// raised before any computation begins; nothing is computed or stored.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s.%s: %s", e.Entity, e.Field, e.Reason)
}

// ComputationError indicates a numerical failure during a required step.
// It aborts the whole proforma for the property; no partial result is
// returned or persisted.
type ComputationError struct {
	PropertyID int64
	Metric     string
	Err        error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed for property %d metric %s: %v", e.PropertyID, e.Metric, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// DataMissingError indicates an optional or required input is absent.
// For optional inputs (market snapshot) the affected tier is skipped
// and marked unavailable rather than defaulted to zero.
type DataMissingError struct {
	PropertyID int64
	Input      string
}

func (e *DataMissingError) Error() string {
	return fmt.Sprintf("missing input %s for property %d", e.Input, e.PropertyID)
}

// AggregationConflictError indicates a concurrent portfolio recompute
// wrote the summary first. The caller retries with fresh reads.
type AggregationConflictError struct {
	PortfolioID int64
}

func (e *AggregationConflictError) Error() string {
	return fmt.Sprintf("portfolio %d summary was modified concurrently", e.PortfolioID)
}

// NotFoundError indicates a referenced entity does not exist. The engine
// never assumes referential integrity is enforced synchronously by the
// storage layer.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
