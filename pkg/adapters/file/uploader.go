package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/google/uuid"
)

// ErrEmptyBlob is returned when an upload carries no data.
var ErrEmptyBlob = errors.New("empty file")

// Uploader implements ports.FileUploader by writing blobs below a base directory.
type Uploader struct {
	BasePath string
}

// NewUploader creates an uploader rooted at basePath.
// If basePath is empty, it defaults to ".formflow/uploads".
func NewUploader(basePath string) *Uploader {
	if basePath == "" {
		basePath = filepath.Join(".formflow", "uploads")
	}
	return &Uploader{BasePath: basePath}
}

// Upload writes the blob to BasePath/folder/<uuid><ext> and returns a file:// descriptor.
func (u *Uploader) Upload(ctx context.Context, blob domain.FileBlob, folder string) (domain.UploadedFile, error) {
	if len(blob.Data) == 0 {
		return domain.UploadedFile{}, ErrEmptyBlob
	}
	if err := ctx.Err(); err != nil {
		return domain.UploadedFile{}, err
	}

	clean := filepath.Clean(filepath.FromSlash(folder))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return domain.UploadedFile{}, fmt.Errorf("invalid upload folder %q", folder)
	}

	dir := filepath.Join(u.BasePath, clean)
	name := uuid.NewString() + strings.ToLower(filepath.Ext(blob.Name))
	if err := writeAtomic(dir, name, blob.Data); err != nil {
		return domain.UploadedFile{}, fmt.Errorf("failed to store %s: %w", blob.Name, err)
	}

	abs, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return domain.UploadedFile{}, err
	}
	return domain.UploadedFile{
		URL:          "file://" + filepath.ToSlash(abs),
		OriginalName: blob.Name,
		ResourceType: domain.ResourceType(blob.ContentType),
		FolderPath:   folder,
	}, nil
}
