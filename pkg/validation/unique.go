package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
)

// FailurePolicy decides what a uniqueness check reports when the store cannot be reached.
type FailurePolicy string

const (
	// FailOpen treats an unreachable store as "unique" and lets the respondent continue.
	FailOpen FailurePolicy = "open"
	// FailClosed treats an unreachable store as a failure that blocks progression.
	FailClosed FailurePolicy = "closed"
)

// ParseFailurePolicy converts a configuration string into a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	}
	return "", fmt.Errorf("unknown uniqueness failure policy %q", s)
}

// Outcome labels what a uniqueness check observed.
type Outcome string

const (
	OutcomeUnique    Outcome = "unique"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeError     Outcome = "error"
	OutcomeSkipped   Outcome = "skipped"
)

// UniquenessChecker queries prior submissions for a value of a unique field.
type UniquenessChecker struct {
	store  ports.SubmissionStore
	policy FailurePolicy
	logger *slog.Logger
}

// CheckerOption configures a UniquenessChecker.
type CheckerOption func(*UniquenessChecker)

// WithFailurePolicy sets the behaviour on store errors. Defaults to FailOpen.
func WithFailurePolicy(p FailurePolicy) CheckerOption {
	return func(c *UniquenessChecker) {
		c.policy = p
	}
}

// WithLogger sets the logger used to report store failures.
func WithLogger(l *slog.Logger) CheckerOption {
	return func(c *UniquenessChecker) {
		c.logger = l
	}
}

// NewUniquenessChecker creates a checker backed by store.
func NewUniquenessChecker(store ports.SubmissionStore, opts ...CheckerOption) *UniquenessChecker {
	c := &UniquenessChecker{
		store:  store,
		policy: FailOpen,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the configured failure policy.
func (c *UniquenessChecker) Policy() FailurePolicy {
	return c.policy
}

// Check verifies that no submission in scope already holds value for field.
// The lookup key is the field's storage key and the value is trimmed.
// Blank values and fields not flagged IsUnique are skipped.
func (c *UniquenessChecker) Check(ctx context.Context, scope domain.Scope, field domain.Field, value any) (Result, Outcome) {
	text := strings.TrimSpace(domain.AsString(value))
	if !field.IsUnique || text == "" {
		return Pass(), OutcomeSkipped
	}

	key := field.StorageKey()
	hits, err := c.store.QueryByKey(ctx, scope.Collection(), key, text)
	if err != nil {
		if c.policy == FailClosed {
			c.logger.Warn("uniqueness check failed, blocking", "field", field.ID, "scope", scope.String(), "err", err)
			return fail(KindUnique, "Could not verify %s right now, please try again", labelOf(field)), OutcomeError
		}
		c.logger.Warn("uniqueness check failed, treating as unique", "field", field.ID, "scope", scope.String(), "err", err)
		return Pass(), OutcomeError
	}

	if len(hits) > 0 {
		return fail(KindUnique, "This %s is already registered", strings.ToLower(labelOf(field))), OutcomeDuplicate
	}
	return Pass(), OutcomeUnique
}
