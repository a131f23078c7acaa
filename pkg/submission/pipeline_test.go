package submission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/formflow/pkg/adapters/memory"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/submission"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func registrationForm() *domain.FormDefinition {
	return domain.Normalize(&domain.FormDefinition{
		ID:    "hackathon",
		Title: "Hackathon Registration",
		Sections: []domain.Section{
			{ID: "about", Title: "About you", Fields: []domain.Field{
				{ID: "f1", Label: "Full Name", Type: domain.FieldText, Required: true},
				{ID: "f2", Label: "  Email!! ", Type: domain.FieldEmail, Required: true, IsUnique: true},
				{ID: "f3", Label: "Team?", Type: domain.FieldRadio, Required: true,
					Options:            []domain.Option{{ID: "o1", Label: "Yes"}, {ID: "o2", Label: "No"}},
					ConditionalMapping: map[string]domain.TargetList{"No": {"payment"}}},
				{ID: "f4", Label: "Note", Type: domain.FieldLabel},
			}},
			{ID: "team", Title: "Team", Fields: []domain.Field{
				{ID: "f5", Label: "Team Name", Type: domain.FieldText, Required: true},
			}},
			{ID: "payment", Title: "Payment", Fields: []domain.Field{
				{ID: "f6", Label: "UPI Transaction ID", Type: domain.FieldText},
				{ID: "f7", Label: "Receipt", Type: domain.FieldFile},
			}},
		},
	})
}

type failingStore struct {
	*memory.Submissions
	failOn string
}

func (f *failingStore) CreateSubmission(ctx context.Context, collection string, sub *domain.Submission) (string, error) {
	if collection == f.failOn {
		return "", errors.New("write refused")
	}
	return f.Submissions.CreateSubmission(ctx, collection, sub)
}

type brokenQueries struct{ *memory.Submissions }

func (brokenQueries) QueryByKey(ctx context.Context, collection, key, value string) ([]domain.Submission, error) {
	return nil, errors.New("timeout")
}

func newPipeline(store ports.SubmissionStore, opts ...submission.Option) *submission.Pipeline {
	opts = append([]submission.Option{
		submission.WithClock(func() time.Time { return fixedNow }),
		submission.WithIDGenerator(func() string { return "sub-1" }),
	}, opts...)
	return submission.New(store, opts...)
}

func TestSubmit_FormScopeWritesScopedOnly(t *testing.T) {
	store := memory.NewSubmissions()
	p := newPipeline(store)
	scope := domain.Scope{Kind: domain.ScopeForm, ID: "hackathon"}

	sub, err := p.Submit(context.Background(), submission.Request{
		Definition: registrationForm(),
		Scope:      scope,
		Answers: domain.Answers{
			"f1": "Ada Lovelace", "f2": "ada@example.com", "f3": "Yes", "f5": "Engines",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, fixedNow, sub.SubmittedAt)
	assert.Equal(t, domain.StatusConfirmed, sub.Status)
	assert.Equal(t, map[string]any{
		"full_name": "Ada Lovelace",
		"email":     "ada@example.com",
		"team":      "Yes",
		"team_name": "Engines",
	}, sub.Data)

	assert.Len(t, store.All(scope.Collection()), 1)
	assert.Empty(t, store.All(domain.GlobalCollection))
}

func TestSubmit_ActivityScopeMirrorsGlobally(t *testing.T) {
	store := memory.NewSubmissions()
	p := newPipeline(store)
	scope := domain.Scope{Kind: domain.ScopeActivity, ID: "hack-24"}

	sub, err := p.Submit(context.Background(), submission.Request{
		Definition: registrationForm(),
		Scope:      scope,
		Answers:    domain.Answers{"f1": "Ada", "f2": "ada@example.com", "f3": "No", "f6": "UPI-123"},
		Files:      domain.UploadedFiles{"f7": {{URL: "mem://r.png", OriginalName: "r.png"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPendingPayment, sub.Status)
	assert.NotContains(t, sub.Data, "team_name", "hidden section must not be persisted")
	assert.Len(t, sub.Data["receipt"], 1)

	scoped := store.All(scope.Collection())
	global := store.All(domain.GlobalCollection)
	require.Len(t, scoped, 1)
	require.Len(t, global, 1)
	assert.Equal(t, scoped[0].ID, global[0].ID)
}

func TestSubmit_GlobalFailureIsSwallowed(t *testing.T) {
	store := &failingStore{Submissions: memory.NewSubmissions(), failOn: domain.GlobalCollection}
	p := newPipeline(store)
	scope := domain.Scope{Kind: domain.ScopeActivity, ID: "hack-24"}

	sub, err := p.Submit(context.Background(), submission.Request{
		Definition: registrationForm(),
		Scope:      scope,
		Answers:    domain.Answers{"f1": "Ada", "f2": "ada@example.com", "f3": "Yes", "f5": "Engines"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Len(t, store.All(scope.Collection()), 1)
}

func TestSubmit_ScopedFailureIsPersistenceError(t *testing.T) {
	scope := domain.Scope{Kind: domain.ScopeForm, ID: "hackathon"}
	store := &failingStore{Submissions: memory.NewSubmissions(), failOn: scope.Collection()}
	p := newPipeline(store)

	_, err := p.Submit(context.Background(), submission.Request{
		Definition: registrationForm(),
		Scope:      scope,
		Answers:    domain.Answers{"f1": "Ada", "f2": "ada@example.com", "f3": "Yes", "f5": "Engines"},
	})

	var perr *submission.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, scope.Collection(), perr.Collection)
}

func TestSubmit_AggregatesAllFailures(t *testing.T) {
	store := memory.NewSubmissions()
	scope := domain.Scope{Kind: domain.ScopeForm, ID: "hackathon"}
	_, err := store.CreateSubmission(context.Background(), scope.Collection(), &domain.Submission{
		Data: map[string]any{"email": "taken@example.com"},
	})
	require.NoError(t, err)

	p := newPipeline(store)
	_, err = p.Submit(context.Background(), submission.Request{
		Definition: registrationForm(),
		Scope:      scope,
		Answers:    domain.Answers{"f2": "taken@example.com", "f3": "Yes"},
	})
	require.Error(t, err)

	errs := validation.FieldErrors(err)
	require.Len(t, errs, 3)
	byField := map[string]validation.Kind{}
	for _, fe := range errs {
		byField[fe.FieldID] = fe.Kind
	}
	assert.Equal(t, validation.KindRequired, byField["f1"])
	assert.Equal(t, validation.KindUnique, byField["f2"])
	assert.Equal(t, validation.KindRequired, byField["f5"])

	assert.Len(t, store.All(scope.Collection()), 1, "nothing is written on failure")
}

func TestSubmit_HiddenRequiredFieldsAreSkipped(t *testing.T) {
	p := newPipeline(memory.NewSubmissions())

	_, err := p.Submit(context.Background(), submission.Request{
		Definition: registrationForm(),
		Scope:      domain.Scope{Kind: domain.ScopeForm, ID: "hackathon"},
		// "No" jumps over the team section and its required Team Name.
		Answers: domain.Answers{"f1": "Ada", "f2": "ada@example.com", "f3": "No"},
	})
	assert.NoError(t, err)
}

func TestSubmit_UniquenessFailurePolicy(t *testing.T) {
	store := brokenQueries{memory.NewSubmissions()}
	req := submission.Request{
		Definition: registrationForm(),
		Scope:      domain.Scope{Kind: domain.ScopeForm, ID: "hackathon"},
		Answers:    domain.Answers{"f1": "Ada", "f2": "ada@example.com", "f3": "No"},
	}

	_, err := newPipeline(store).Submit(context.Background(), req)
	assert.NoError(t, err, "fail-open submits despite the lookup error")

	closed := validation.NewUniquenessChecker(store, validation.WithFailurePolicy(validation.FailClosed))
	_, err = newPipeline(store, submission.WithUniquenessChecker(closed)).Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, validation.KindUnique, validation.FieldErrors(err)[0].Kind)
}

func TestSubmit_LegacyFlatDefinition(t *testing.T) {
	legacy := &domain.FormDefinition{
		ID:    "contact",
		Title: "Contact",
		Fields: []domain.Field{
			{ID: "f1", Label: "Full Name", Type: domain.FieldText, Required: true},
			{ID: "f2", Label: "Email", Type: domain.FieldEmail},
		},
	}
	store := memory.NewSubmissions()
	p := newPipeline(store)
	scope := domain.Scope{Kind: domain.ScopeForm, ID: "contact"}

	_, err := p.Submit(context.Background(), submission.Request{Definition: legacy, Scope: scope, Answers: domain.Answers{}})
	fields := validation.FieldErrors(err)
	require.Len(t, fields, 1, "required checks apply to flat definitions")
	assert.Equal(t, "f1", fields[0].FieldID)
	assert.Empty(t, store.All(scope.Collection()))

	sub, err := p.Submit(context.Background(), submission.Request{
		Definition: legacy,
		Scope:      scope,
		Answers:    domain.Answers{"f1": "Ada", "f2": "ada@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"full_name": "Ada", "email": "ada@example.com"}, sub.Data)
	assert.Equal(t, "contact", sub.FormID)
}

func TestSubmit_UniqueFieldWithSymbolLabel(t *testing.T) {
	def := domain.Normalize(&domain.FormDefinition{
		ID: "roll-call",
		Sections: []domain.Section{{ID: "s1", Fields: []domain.Field{
			{ID: "roll", Label: "#", Type: domain.FieldText, Required: true, IsUnique: true},
		}}},
	})
	store := memory.NewSubmissions()
	p := newPipeline(store)
	scope := domain.Scope{Kind: domain.ScopeForm, ID: "roll-call"}
	req := submission.Request{Definition: def, Scope: scope, Answers: domain.Answers{"roll": "42"}}

	sub, err := p.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"roll": "42"}, sub.Data)

	_, err = p.Submit(context.Background(), req)
	fields := validation.FieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, validation.KindUnique, fields[0].Kind)
	assert.Len(t, store.All(scope.Collection()), 1)
}
