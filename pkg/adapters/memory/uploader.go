package memory

import (
	"context"
	"errors"
	"path"
	"sync"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/google/uuid"
)

// ErrEmptyBlob is returned when an upload carries no data.
var ErrEmptyBlob = errors.New("empty file")

// Uploader implements ports.FileUploader by keeping blobs in memory.
type Uploader struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewUploader creates an empty in-memory uploader.
func NewUploader() *Uploader {
	return &Uploader{blobs: make(map[string][]byte)}
}

// Upload stores the blob and returns a mem:// descriptor.
func (u *Uploader) Upload(ctx context.Context, blob domain.FileBlob, folder string) (domain.UploadedFile, error) {
	if len(blob.Data) == 0 {
		return domain.UploadedFile{}, ErrEmptyBlob
	}
	if err := ctx.Err(); err != nil {
		return domain.UploadedFile{}, err
	}

	key := path.Join(folder, uuid.NewString()+path.Ext(blob.Name))

	u.mu.Lock()
	u.blobs[key] = append([]byte(nil), blob.Data...)
	u.mu.Unlock()

	return domain.UploadedFile{
		URL:          "mem://" + key,
		OriginalName: blob.Name,
		ResourceType: domain.ResourceType(blob.ContentType),
		FolderPath:   folder,
	}, nil
}

// Get returns the data behind a mem:// URL.
func (u *Uploader) Get(url string) ([]byte, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	data, ok := u.blobs[url[len("mem://"):]]
	return data, ok
}
