package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
)

// Mask replaces answers whose field id matches a PII pattern.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks answers of fields whose id
// matches one of the patterns before the snapshot is persisted.
// A restored session must ask for masked answers again.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	// Clone to avoid side effects on the snapshot held by the caller.
	cloned := snap.Clone()
	maskAnswers(cloned.Answers, m.patterns)
	return m.next.Save(ctx, sessionID, cloned)
}

// Load drops masked answers so a restored session treats them as unanswered.
func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	snap, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	unmaskAnswers(snap.Answers, m.patterns)
	return snap, nil
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskAnswers(answers domain.Answers, patterns []*regexp.Regexp) {
	for k := range answers {
		for _, p := range patterns {
			if p.MatchString(k) {
				answers[k] = Mask
				break
			}
		}
	}
}

func unmaskAnswers(answers domain.Answers, patterns []*regexp.Regexp) {
	for k, v := range answers {
		if v != Mask {
			continue
		}
		for _, p := range patterns {
			if p.MatchString(k) {
				delete(answers, k)
				break
			}
		}
	}
}
