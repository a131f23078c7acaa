package submission

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/visibility"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentChecks bounds the uniqueness queries issued by one submission.
const maxConcurrentChecks = 8

// Request is the input of a submission.
type Request struct {
	Definition *domain.FormDefinition
	Scope      domain.Scope
	Answers    domain.Answers
	Files      domain.UploadedFiles
}

// Pipeline validates and stores submissions.
type Pipeline struct {
	store   ports.SubmissionStore
	checker *validation.UniquenessChecker
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Swallowed global writes are reported at Warn.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithUniquenessChecker replaces the default fail-open checker.
func WithUniquenessChecker(c *validation.UniquenessChecker) Option {
	return func(p *Pipeline) {
		p.checker = c
	}
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithIDGenerator overrides submission id generation.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		p.newID = gen
	}
}

// New creates a Pipeline writing to store.
func New(store ports.SubmissionStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  store,
		logger: logging.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.checker == nil {
		p.checker = validation.NewUniquenessChecker(store, validation.WithLogger(p.logger))
	}
	return p
}

// Checker returns the uniqueness checker shared with callers that validate on blur.
func (p *Pipeline) Checker() *validation.UniquenessChecker {
	return p.checker
}

// Validate runs required and format checks over the visible fields of every visible
// section, then re-queries uniqueness for each visible unique field with an answer.
// All failures are returned together as a *validation.AggregateError.
func (p *Pipeline) Validate(ctx context.Context, req Request) error {
	def := req.Definition.Normalized()
	res := visibility.Resolve(def, req.Answers)

	aggr := &validation.AggregateError{}
	var unique []domain.Field
	for _, idx := range res.Indexes {
		section := def.Sections[idx]
		for _, field := range visibility.VisibleFields(section, req.Answers) {
			if fe := validation.ValidateField(field, req.Answers, req.Files).Err(field); fe != nil {
				aggr.Add(fe)
				continue
			}
			if field.IsUnique && !domain.IsEmpty(req.Answers[field.ID]) {
				unique = append(unique, field)
			}
		}
	}

	results := make([]validation.Result, len(unique))
	var g errgroup.Group
	g.SetLimit(maxConcurrentChecks)
	for i, field := range unique {
		g.Go(func() error {
			results[i], _ = p.checker.Check(ctx, req.Scope, field, req.Answers[field.ID])
			return nil
		})
	}
	_ = g.Wait()

	for i, field := range unique {
		if fe := results[i].Err(field); fe != nil {
			aggr.Add(fe)
		}
	}
	return aggr.ErrOrNil()
}

// Submit validates req and, when everything passes, writes the submission.
// Nothing is written if validation fails. A failed scoped write returns a
// *PersistenceError; a failed global mirror write is logged and ignored.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*domain.Submission, error) {
	req.Definition = req.Definition.Normalized()
	if err := p.Validate(ctx, req); err != nil {
		return nil, err
	}

	data := BuildPayload(req.Definition, req.Answers, req.Files)
	sub := &domain.Submission{
		ID:          p.newID(),
		FormID:      req.Definition.ID,
		Scope:       req.Scope,
		Data:        data,
		Status:      DeriveStatus(data),
		SubmittedAt: p.now().UTC(),
	}

	collection := req.Scope.Collection()
	id, err := p.store.CreateSubmission(ctx, collection, sub)
	if err != nil {
		return nil, &PersistenceError{Collection: collection, Err: err}
	}
	sub.ID = id

	if req.Scope.WritesGlobal() {
		if _, err := p.store.CreateSubmission(ctx, domain.GlobalCollection, sub); err != nil {
			p.logger.Warn("global submission write failed",
				"submission_id", sub.ID, "scope", req.Scope.String(), "err", err)
		}
	}

	p.logger.Info("submission stored",
		"submission_id", sub.ID, "form_id", sub.FormID, "collection", collection, "status", sub.Status)
	return sub, nil
}
