package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField is returned when a field id is not part of the definition.
	ErrUnknownField = errors.New("unknown field")
	// ErrNotAnswerable is returned when writing to a presentational field or
	// when setting a file field through SetAnswer.
	ErrNotAnswerable = errors.New("field does not accept this kind of answer")
	// ErrNotEditable is returned while a submission is in progress or after it succeeded.
	ErrNotEditable = errors.New("form is not editable")
	// ErrAtStart is returned by Retreat on the first visible section.
	ErrAtStart = errors.New("already at the first section")
)

// Block reasons.
const (
	ReasonInvalid   = "invalid"
	ReasonDuplicate = "duplicate"
	ReasonPending   = "pending"
)

// BlockedError reports that Advance or Submit was refused by the progression gate.
// It carries one message for the respondent and does not list the offending fields.
type BlockedError struct {
	Reason  string
	Message string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("cannot continue (%s): %s", e.Reason, e.Message)
}

// UploadError reports a failed upload for one file field.
type UploadError struct {
	FieldID string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed for field %q: %v", e.FieldID, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
