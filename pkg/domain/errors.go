package domain

import (
	"errors"
	"fmt"
)

// ErrFormNotFound is returned when a definition store has no form with the requested id.
var ErrFormNotFound = errors.New("form not found")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// DefinitionError reports a malformed form definition. It is terminal for a session.
type DefinitionError struct {
	FormID string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.FormID == "" {
		return fmt.Sprintf("invalid form definition: %s", e.Reason)
	}
	return fmt.Sprintf("invalid form definition %q: %s", e.FormID, e.Reason)
}
