package domain

import (
	"reflect"
)

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentSection *int   `json:"current_section,omitempty"`
	Phase          *Phase `json:"phase,omitempty"`

	// Answers contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Answers map[string]any `json:"answers,omitempty"`

	// Validation state is small, so changed sets are sent whole.
	Validating   []string          `json:"validating,omitempty"`
	UniqueErrors map[string]string `json:"unique_errors,omitempty"`
	UploadErrors map[string]string `json:"upload_errors,omitempty"`

	// ValidationChanged distinguishes "cleared" from "unchanged" for the sets above.
	ValidationChanged bool `json:"validation_changed,omitempty"`

	SubmissionID *string `json:"submission_id,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{
		SessionID: newSnap.SessionID,
	}

	if oldSnap == nil || oldSnap.CurrentSection != newSnap.CurrentSection {
		diff.CurrentSection = &newSnap.CurrentSection
	}
	if oldSnap == nil || oldSnap.Phase != newSnap.Phase {
		diff.Phase = &newSnap.Phase
	}
	if newSnap.SubmissionID != "" && (oldSnap == nil || oldSnap.SubmissionID != newSnap.SubmissionID) {
		diff.SubmissionID = &newSnap.SubmissionID
	}

	diff.Answers = diffAnswers(oldSnap, newSnap)

	if oldSnap == nil ||
		!sameSet(oldSnap.Validating, newSnap.Validating) ||
		!sameMap(oldSnap.UniqueErrors, newSnap.UniqueErrors) ||
		!sameMap(oldSnap.UploadErrors, newSnap.UploadErrors) {
		diff.ValidationChanged = true
		diff.Validating = newSnap.Validating
		diff.UniqueErrors = newSnap.UniqueErrors
		diff.UploadErrors = newSnap.UploadErrors
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffAnswers(old *Snapshot, new *Snapshot) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Answers {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Answers {
		oldVal, exists := old.Answers[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Answers {
		if _, exists := new.Answers[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			return false
		}
	}
	return true
}

func sameMap(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.CurrentSection == nil &&
		d.Phase == nil &&
		d.SubmissionID == nil &&
		len(d.Answers) == 0 &&
		!d.ValidationChanged
}
