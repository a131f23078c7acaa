package domain

// Phase is the lifecycle stage of a wizard session.
type Phase string

const (
	PhaseEditing    Phase = "editing"
	PhaseSubmitting Phase = "submitting"
	PhaseSubmitted  Phase = "submitted"
)

// Snapshot is the serialisable state of a wizard session.
type Snapshot struct {
	SessionID      string            `json:"session_id"`
	FormID         string            `json:"form_id"`
	Scope          Scope             `json:"scope"`
	CurrentSection int               `json:"current_section"`
	Answers        Answers           `json:"answers"`
	UploadedFiles  UploadedFiles     `json:"uploaded_files,omitempty"`
	Touched        []string          `json:"touched,omitempty"`
	Validating     []string          `json:"validating,omitempty"`
	UniqueErrors   map[string]string `json:"unique_errors,omitempty"`
	UploadErrors   map[string]string `json:"upload_errors,omitempty"`
	Phase          Phase             `json:"phase"`
	SubmissionID   string            `json:"submission_id,omitempty"`
	// Revision counts the writes of the session; replicas compare it to spot
	// snapshots they did not write.
	Revision int64 `json:"revision,omitempty"`
}

// NewSnapshot creates a clean session positioned at the first section.
func NewSnapshot(sessionID, formID string, scope Scope) *Snapshot {
	return &Snapshot{
		SessionID:     sessionID,
		FormID:        formID,
		Scope:         scope,
		Answers:       make(Answers),
		UploadedFiles: make(UploadedFiles),
		Phase:         PhaseEditing,
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Answers = s.Answers.Clone()
	out.UploadedFiles = s.UploadedFiles.Clone()
	out.Touched = append([]string(nil), s.Touched...)
	out.Validating = append([]string(nil), s.Validating...)
	out.UniqueErrors = cloneStrings(s.UniqueErrors)
	out.UploadErrors = cloneStrings(s.UploadErrors)
	return &out
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
