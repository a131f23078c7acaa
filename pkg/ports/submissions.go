package ports

import (
	"context"

	"github.com/aretw0/formflow/pkg/domain"
)

// SubmissionStore persists submitted answers.
// Collections are plain names such as domain.Scope.Collection() or domain.GlobalCollection.
type SubmissionStore interface {
	// CreateSubmission writes sub into collection and returns the stored id.
	// If sub.ID is empty the store assigns one.
	CreateSubmission(ctx context.Context, collection string, sub *domain.Submission) (string, error)

	// QueryByKey returns every submission in collection whose Data[key] equals value.
	QueryByKey(ctx context.Context, collection, key, value string) ([]domain.Submission, error)
}

// FileUploader stores binary blobs for file fields.
type FileUploader interface {
	// Upload stores blob under folder and returns its descriptor.
	Upload(ctx context.Context, blob domain.FileBlob, folder string) (domain.UploadedFile, error)
}
