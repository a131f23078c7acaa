package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a field failure.
type Kind string

const (
	KindRequired Kind = "required"
	KindFormat   Kind = "format"
	KindUnique   Kind = "unique"
	KindUpload   Kind = "upload"
)

// FieldError represents a single field failure.
type FieldError struct {
	FieldID string `json:"field"`
	Label   string `json:"label"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.FieldID, e.Message)
}

// AggregateError represents multiple field failures.
type AggregateError struct {
	Errors []*FieldError
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// Add appends a failure.
func (e *AggregateError) Add(fe *FieldError) {
	e.Errors = append(e.Errors, fe)
}

// ErrOrNil returns e as an error if it holds any failure, nil otherwise.
func (e *AggregateError) ErrOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// FieldErrors returns all field failures if err wraps an AggregateError.
// Otherwise returns nil.
func FieldErrors(err error) []*FieldError {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
