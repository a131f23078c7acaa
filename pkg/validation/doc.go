// Package validation checks candidate answers against field definitions.
//
// Synchronous checks (required, email and phone format) are pure functions of the
// field, the answers and the uploaded files. The uniqueness check queries a
// ports.SubmissionStore and is run separately by the wizard and the submission pipeline.
package validation
