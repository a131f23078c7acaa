package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// Submissions implements ports.SubmissionStore using Redis.
//
// Each submission is a JSON document. Every payload key gets an index set
// per rendered value so QueryByKey is a single SMEMBERS plus MGET.
type Submissions struct {
	client *backend.Client
	prefix string
}

// NewSubmissions creates a submission store from an existing client.
func NewSubmissions(client *backend.Client, prefix string) *Submissions {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Submissions{client: client, prefix: prefix + "sub:"}
}

func (s *Submissions) docKey(collection, id string) string {
	return s.prefix + collection + ":doc:" + id
}

func (s *Submissions) collectionKey(collection string) string {
	return s.prefix + collection + ":ids"
}

func (s *Submissions) indexKey(collection, key, value string) string {
	return s.prefix + collection + ":idx:" + key + "=" + value
}

// CreateSubmission writes the document and its indexes atomically.
func (s *Submissions) CreateSubmission(ctx context.Context, collection string, sub *domain.Submission) (string, error) {
	stored := *sub
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal submission: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.docKey(collection, stored.ID), data, 0)
	pipe.SAdd(ctx, s.collectionKey(collection), stored.ID)
	for key, value := range stored.Data {
		pipe.SAdd(ctx, s.indexKey(collection, key, domain.AsString(value)), stored.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to write submission: %w", err)
	}
	return stored.ID, nil
}

// QueryByKey returns the submissions indexed under key=value, oldest first.
func (s *Submissions) QueryByKey(ctx context.Context, collection, key, value string) ([]domain.Submission, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(collection, key, value)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return s.load(ctx, collection, ids)
}

// Count returns the number of submissions in collection.
func (s *Submissions) Count(ctx context.Context, collection string) (int64, error) {
	return s.client.SCard(ctx, s.collectionKey(collection)).Result()
}

func (s *Submissions) load(ctx context.Context, collection string, ids []string) ([]domain.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}

	out := make([]domain.Submission, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var sub domain.Submission
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			return nil, fmt.Errorf("failed to unmarshal submission: %w", err)
		}
		out = append(out, sub)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}
