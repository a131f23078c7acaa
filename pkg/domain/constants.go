package domain

// Field constants for mapstructure and JSON standardization.
const (
	// KeySubmissionID is the document key holding the submission id in stores
	// that persist submissions as flat maps.
	KeySubmissionID = "id"

	// KeyStatus is the document key holding the derived submission status.
	KeyStatus = "status"
)
