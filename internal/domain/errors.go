package domain

import (
	"fmt"
	"strings"
)

// DataError marks a single malformed input row. It is recoverable: callers log
// it and skip the row.
type DataError struct {
	Row    int    // original row index, -1 when unknown
	Field  string // offending column
	Value  string
	Reason string
}

func (e *DataError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("row %d: invalid %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// NewDataError creates a DataError for the given row and column.
func NewDataError(row int, field, value, reason string) *DataError {
	return &DataError{Row: row, Field: field, Value: value, Reason: reason}
}

// StructuralError is a fatal problem with the shape of the input as a whole,
// such as missing required columns.
type StructuralError struct {
	Reason  string
	Missing []string
}

func (e *StructuralError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing required columns: %s", e.Reason, strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// UnresolvedUnderlyingError is returned when options reference an underlying
// that has no stock row and whose price cannot be resolved. Option deltas
// cannot be computed without an underlying price, so assembly aborts.
type UnresolvedUnderlyingError struct {
	Underlying string
	Options    int
}

func (e *UnresolvedUnderlyingError) Error() string {
	return fmt.Sprintf("cannot resolve price for underlying %s of %d orphaned option(s); "+
		"add a %s stock row or make a price available for it", e.Underlying, e.Options, e.Underlying)
}

// FirstGroupError wraps the failure of the very first portfolio group. Later
// group failures are skipped, but a failing first group aborts assembly so an
// almost-empty portfolio is never reported as valid.
type FirstGroupError struct {
	Ticker string
	Err    error
}

func (e *FirstGroupError) Error() string {
	return fmt.Sprintf("failed to build first portfolio group %s: %v", e.Ticker, e.Err)
}

func (e *FirstGroupError) Unwrap() error {
	return e.Err
}

// MissingFieldError is returned by the FromMap constructors when a required
// key is absent or has the wrong type.
type MissingFieldError struct {
	Entity string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing or invalid required field %q", e.Entity, e.Field)
}

// SignConventionError reports an exposure value whose sign contradicts its side
// (a positive short total or a negative long total).
type SignConventionError struct {
	Side  ExposureSide
	Field string
	Value float64
}

func (e *SignConventionError) Error() string {
	return fmt.Sprintf("%s exposure field %s has wrong sign: %.6f", e.Side, e.Field, e.Value)
}
