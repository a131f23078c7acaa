package memory

import (
	"context"
	"sync"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/google/uuid"
)

// Submissions implements ports.SubmissionStore in memory.
// Safe for concurrent use.
type Submissions struct {
	mu          sync.RWMutex
	collections map[string][]domain.Submission
}

// NewSubmissions creates an empty submission store.
func NewSubmissions() *Submissions {
	return &Submissions{collections: make(map[string][]domain.Submission)}
}

// CreateSubmission stores a copy of sub, assigning an id when it has none.
func (s *Submissions) CreateSubmission(ctx context.Context, collection string, sub *domain.Submission) (string, error) {
	stored := copySubmission(*sub)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], stored)
	return stored.ID, nil
}

// QueryByKey scans collection for submissions holding value under key.
func (s *Submissions) QueryByKey(ctx context.Context, collection, key, value string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Submission
	for _, sub := range s.collections[collection] {
		if sub.Matches(key, value) {
			out = append(out, copySubmission(sub))
		}
	}
	return out, nil
}

// All returns every submission of a collection in insertion order.
func (s *Submissions) All(collection string) []domain.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Submission, 0, len(s.collections[collection]))
	for _, sub := range s.collections[collection] {
		out = append(out, copySubmission(sub))
	}
	return out
}

func copySubmission(sub domain.Submission) domain.Submission {
	data := make(map[string]any, len(sub.Data))
	for k, v := range sub.Data {
		data[k] = v
	}
	sub.Data = data
	return sub
}
