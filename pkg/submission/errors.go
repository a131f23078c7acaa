package submission

import "fmt"

// PersistenceError reports that the authoritative write failed.
// The answers that produced it are untouched and may be submitted again.
type PersistenceError struct {
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to store submission in %s: %v", e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
