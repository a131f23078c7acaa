package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSectionEnter  EventType = "section_enter"
	EventAdvanceBlock  EventType = "advance_blocked"
	EventUniqueCheck   EventType = "unique_check"
	EventSubmit        EventType = "submit"
	EventSubmitFailure EventType = "submit_failure"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	FormID    string    `json:"form_id"`
}

// SectionEvent represents entry into a section or a blocked attempt to leave it.
type SectionEvent struct {
	EventBase
	SectionID string `json:"section_id"`
	Index     int    `json:"index"`
	Reason    string `json:"reason,omitempty"`
}

// UniqueCheckEvent reports the outcome of an asynchronous uniqueness check.
type UniqueCheckEvent struct {
	EventBase
	FieldID  string        `json:"field_id"`
	Outcome  string        `json:"outcome"` // unique, duplicate, error, stale
	Duration time.Duration `json:"duration"`
}

// SubmitEvent reports a submission attempt.
type SubmitEvent struct {
	EventBase
	SubmissionID string           `json:"submission_id,omitempty"`
	Status       SubmissionStatus `json:"status,omitempty"`
	Failures     int              `json:"failures,omitempty"`
	Err          error            `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSectionEnter func(context.Context, *SectionEvent)
	OnAdvanceBlock func(context.Context, *SectionEvent)
	OnUniqueCheck  func(context.Context, *UniqueCheckEvent)
	OnSubmit       func(context.Context, *SubmitEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSectionEnter: chain(h.OnSectionEnter, other.OnSectionEnter),
		OnAdvanceBlock: chain(h.OnAdvanceBlock, other.OnAdvanceBlock),
		OnUniqueCheck:  chain(h.OnUniqueCheck, other.OnUniqueCheck),
		OnSubmit:       chain(h.OnSubmit, other.OnSubmit),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
