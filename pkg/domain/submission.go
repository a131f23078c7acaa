package domain

import (
	"fmt"
	"time"
)

// ScopeKind distinguishes the two call sites of the engine.
type ScopeKind string

const (
	// ScopeForm is a generic public form.
	ScopeForm ScopeKind = "form"
	// ScopeActivity is an activity registration form.
	ScopeActivity ScopeKind = "activity"
)

// GlobalCollection receives a copy of every activity registration.
const GlobalCollection = "registrations"

// Scope identifies where submissions are stored and where uniqueness is checked.
type Scope struct {
	Kind ScopeKind `json:"kind" mapstructure:"kind"`
	ID   string    `json:"id" mapstructure:"id"`
}

// Collection returns the scoped collection name.
func (s Scope) Collection() string {
	switch s.Kind {
	case ScopeActivity:
		return fmt.Sprintf("activities/%s/registrations", s.ID)
	default:
		return fmt.Sprintf("forms/%s/submissions", s.ID)
	}
}

// WritesGlobal reports whether submissions are mirrored to GlobalCollection.
func (s Scope) WritesGlobal() bool {
	return s.Kind == ScopeActivity
}

func (s Scope) String() string {
	return string(s.Kind) + ":" + s.ID
}

// SubmissionStatus is derived from the payload keys at submission time.
type SubmissionStatus string

const (
	StatusConfirmed      SubmissionStatus = "confirmed"
	StatusPendingPayment SubmissionStatus = "pending_payment"
)

// Submission is a persisted form answer set. Data is keyed by label slugs.
type Submission struct {
	ID          string           `json:"id" mapstructure:"id"`
	FormID      string           `json:"formId" mapstructure:"formId"`
	Scope       Scope            `json:"scope" mapstructure:"scope"`
	Data        map[string]any   `json:"data" mapstructure:"data"`
	Status      SubmissionStatus `json:"status" mapstructure:"status"`
	SubmittedAt time.Time        `json:"submittedAt" mapstructure:"submittedAt"`
}

// Matches reports whether the submission stores value under key.
// Values are compared in their rendered form so numbers and strings match alike.
func (s Submission) Matches(key, value string) bool {
	stored, ok := s.Data[key]
	if !ok {
		return false
	}
	return AsString(stored) == value
}
