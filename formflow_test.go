package formflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/pkg/adapters/memory"
	"github.com/aretw0/formflow/pkg/adapters/redis"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/dsl"
	"github.com/aretw0/formflow/pkg/persistence/middleware"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/wizard"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registrationForm(t *testing.T) *memory.Definitions {
	t.Helper()
	b := dsl.New("workshop").Title("Workshop")
	about := b.Section("about")
	about.Text("name", "Full Name").Required()
	about.Email("email", "Email").Required().Unique()
	about.Radio("laptop", "Bringing a laptop?", "Yes", "No").Required().Jump("No", "payment")
	b.Section("setup").Select("os", "Operating system", "Linux", "macOS", "Windows").Required()
	b.Section("payment").SubmitStep().Text("upi", "UPI Transaction ID").Required()

	defs, err := b.Store()
	require.NoError(t, err)
	return defs
}

type recorder struct {
	mu    sync.Mutex
	diffs []*domain.SnapshotDiff
}

func (r *recorder) listen(sessionID string, diff *domain.SnapshotDiff) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diffs = append(r.diffs, diff)
}

func (r *recorder) answers() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any)
	for _, d := range r.diffs {
		for k, v := range d.Answers {
			out[k] = v
		}
	}
	return out
}

func TestEngine_StartPersistsSnapshot(t *testing.T) {
	store := memory.NewStore()
	eng, err := formflow.New(registrationForm(t), formflow.WithSessionStore(store))
	require.NoError(t, err)
	defer eng.Shutdown()

	ctx := context.Background()
	snap, err := eng.Start(ctx, "workshop", domain.Scope{})
	require.NoError(t, err)
	require.NotEmpty(t, snap.SessionID)
	assert.Equal(t, domain.PhaseEditing, snap.Phase)
	assert.Equal(t, formflow.DefaultScope("workshop"), snap.Scope)

	stored, err := store.Load(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "workshop", stored.FormID)
	assert.Equal(t, 0, stored.CurrentSection)
}

func TestEngine_StartUnknownForm(t *testing.T) {
	eng, err := formflow.New(registrationForm(t))
	require.NoError(t, err)

	_, err = eng.Start(context.Background(), "missing", domain.Scope{})
	assert.ErrorIs(t, err, domain.ErrFormNotFound)
}

func TestEngine_NewRequiresDefinitions(t *testing.T) {
	_, err := formflow.New(nil)
	assert.Error(t, err)
}

func TestEngine_DoPersistsAndNotifies(t *testing.T) {
	store := memory.NewStore()
	eng, err := formflow.New(registrationForm(t), formflow.WithSessionStore(store))
	require.NoError(t, err)
	defer eng.Shutdown()

	rec := &recorder{}
	eng.OnChange(rec.listen)

	ctx := context.Background()
	snap, err := eng.Start(ctx, "workshop", domain.Scope{})
	require.NoError(t, err)
	id := snap.SessionID

	snap, err = eng.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
		return c.SetAnswer(ctx, "name", "Ada")
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", snap.Answers["name"])

	stored, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.Answers["name"])
	assert.Equal(t, "Ada", rec.answers()["name"])

	// Operation errors come back with the snapshot taken after them.
	snap, err = eng.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
		_, err := c.Advance(ctx)
		return err
	})
	var blocked *wizard.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, wizard.ReasonInvalid, blocked.Reason)
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.CurrentSection)
	assert.Contains(t, snap.Touched, "email")
}

func TestEngine_RestoresEvictedSession(t *testing.T) {
	store := memory.NewStore()
	eng, err := formflow.New(registrationForm(t), formflow.WithSessionStore(store))
	require.NoError(t, err)
	defer eng.Shutdown()

	ctx := context.Background()
	snap, err := eng.Start(ctx, "workshop", domain.Scope{})
	require.NoError(t, err)
	id := snap.SessionID

	_, err = eng.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
		for field, value := range map[string]string{"name": "Ada", "email": "ada@example.com", "laptop": "Yes"} {
			if err := c.SetAnswer(ctx, field, value); err != nil {
				return err
			}
		}
		_, err := c.Advance(ctx)
		return err
	})
	require.NoError(t, err)

	eng.Evict(id)

	// A second engine on the same store sees the same session.
	other, err := formflow.New(registrationForm(t), formflow.WithSessionStore(store))
	require.NoError(t, err)
	defer other.Shutdown()

	for _, e := range []*formflow.Engine{eng, other} {
		var section string
		_, err = e.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
			_, s := c.Current()
			section = s.ID
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "setup", section)
	}
}

func TestEngine_MaskedAnswersAreAskedAgain(t *testing.T) {
	store := middleware.NewPIIMiddleware([]string{"^name$"})(memory.NewStore())
	eng, err := formflow.New(registrationForm(t), formflow.WithSessionStore(store))
	require.NoError(t, err)
	defer eng.Shutdown()

	ctx := context.Background()
	snap, err := eng.Start(ctx, "workshop", domain.Scope{})
	require.NoError(t, err)
	id := snap.SessionID

	_, err = eng.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
		return c.SetAnswer(ctx, "name", "Ada")
	})
	require.NoError(t, err)

	eng.Evict(id)

	var errs map[string]string
	restored, err := eng.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
		errs = c.Errors()
		return nil
	})
	require.NoError(t, err)
	assert.NotContains(t, restored.Answers, "name")
	assert.Contains(t, errs, "name", "a touched required field without its masked value is invalid")
}

func TestEngine_SessionAndDelete(t *testing.T) {
	eng, err := formflow.New(registrationForm(t))
	require.NoError(t, err)

	ctx := context.Background()
	snap, err := eng.Start(ctx, "workshop", domain.Scope{})
	require.NoError(t, err)

	got, err := eng.Session(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, got.SessionID)

	require.NoError(t, eng.Delete(ctx, snap.SessionID))
	_, err = eng.Session(ctx, snap.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = eng.Do(ctx, snap.SessionID, func(context.Context, *wizard.Controller) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_FullRegistrationThroughJump(t *testing.T) {
	subs := memory.NewSubmissions()
	eng, err := formflow.New(registrationForm(t), formflow.WithSubmissionStore(subs))
	require.NoError(t, err)
	defer eng.Shutdown()

	ctx := context.Background()
	scope := domain.Scope{Kind: domain.ScopeActivity, ID: "ws-42"}
	snap, err := eng.Start(ctx, "workshop", scope)
	require.NoError(t, err)

	snap, err = eng.Do(ctx, snap.SessionID, func(ctx context.Context, c *wizard.Controller) error {
		c.SetAnswer(ctx, "name", "Ada")
		c.SetAnswer(ctx, "email", "ada@example.com")
		c.SetAnswer(ctx, "laptop", "No")
		if _, err := c.Advance(ctx); err != nil {
			return err
		}
		_, s := c.Current()
		assert.Equal(t, "payment", s.ID, "the No answer jumps over setup")

		c.SetAnswer(ctx, "upi", "TX-1")
		_, err := c.Advance(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, snap.Phase)

	stored := subs.All(scope.Collection())
	require.Len(t, stored, 1)
	assert.Equal(t, domain.StatusPendingPayment, stored[0].Status)
	assert.NotContains(t, stored[0].Data, "operating_system")
	assert.Equal(t, "TX-1", stored[0].Data["upi_transaction_id"])
	assert.Len(t, subs.All(domain.GlobalCollection), 1)
}

func TestEngine_ValidateField(t *testing.T) {
	subs := memory.NewSubmissions()
	eng, err := formflow.New(registrationForm(t), formflow.WithSubmissionStore(subs))
	require.NoError(t, err)

	ctx := context.Background()
	res, err := eng.ValidateField(ctx, "workshop", domain.Scope{}, "email", "broken")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, validation.KindFormat, res.Kind)

	res, err = eng.ValidateField(ctx, "workshop", domain.Scope{}, "email", "ada@example.com")
	require.NoError(t, err)
	assert.True(t, res.OK)

	_, err = eng.Submit(ctx, "workshop", domain.Scope{}, domain.Answers{
		"name": "Ada", "email": "ada@example.com", "laptop": "Yes", "os": "Linux", "upi": "TX-1",
	}, nil)
	require.NoError(t, err)

	res, err = eng.ValidateField(ctx, "workshop", domain.Scope{}, "email", " ada@example.com ")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, validation.KindUnique, res.Kind)

	// Another scope does not see the first submission.
	res, err = eng.ValidateField(ctx, "workshop", domain.Scope{Kind: domain.ScopeActivity, ID: "ws-1"}, "email", "ada@example.com")
	require.NoError(t, err)
	assert.True(t, res.OK)

	_, err = eng.ValidateField(ctx, "workshop", domain.Scope{}, "ghost", "x")
	assert.ErrorIs(t, err, wizard.ErrUnknownField)
}

func TestEngine_SubmitReportsEveryFailure(t *testing.T) {
	eng, err := formflow.New(registrationForm(t))
	require.NoError(t, err)

	_, err = eng.Submit(context.Background(), "workshop", domain.Scope{}, domain.Answers{
		"email": "not-an-email",
		"name":  "<b></b>",
	}, nil)
	fields := map[string]validation.Kind{}
	for _, fe := range validation.FieldErrors(err) {
		fields[fe.FieldID] = fe.Kind
	}
	assert.Equal(t, validation.KindRequired, fields["name"], "markup-only answers are empty after sanitizing")
	assert.Equal(t, validation.KindFormat, fields["email"])
	assert.Equal(t, validation.KindRequired, fields["laptop"])
}

func TestEngine_Resolve(t *testing.T) {
	eng, err := formflow.New(registrationForm(t))
	require.NoError(t, err)

	res, err := eng.Resolve(context.Background(), "workshop", domain.Answers{"laptop": "No"})
	require.NoError(t, err)
	assert.Equal(t, []string{"about", "payment"}, res.Sections)

	res, err = eng.Resolve(context.Background(), "workshop", domain.Answers{})
	require.NoError(t, err)
	assert.Equal(t, []string{"about", "setup", "payment"}, res.Sections)
}

func TestEngine_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	eng, err := formflow.New(registrationForm(t),
		formflow.WithSessionStore(redis.NewFromClient(client)),
		formflow.WithLocker(redis.NewLocker(client, "formflow:lock:")),
	)
	require.NoError(t, err)
	defer eng.Shutdown()

	ctx := context.Background()
	snap, err := eng.Start(ctx, "workshop", domain.Scope{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d", "e"}
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Do(ctx, snap.SessionID, func(ctx context.Context, c *wizard.Controller) error {
				return c.SetAnswer(ctx, "name", name)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := eng.Session(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Contains(t, names, got.Answers["name"])
}

func TestEngine_ReplicasShareSessionState(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	replica := func() *formflow.Engine {
		eng, err := formflow.New(registrationForm(t),
			formflow.WithSessionStore(redis.NewFromClient(client)),
			formflow.WithLocker(redis.NewLocker(client, "formflow:lock:")),
		)
		require.NoError(t, err)
		t.Cleanup(eng.Shutdown)
		return eng
	}
	a, b := replica(), replica()
	ctx := context.Background()

	snap, err := a.Start(ctx, "workshop", domain.Scope{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Revision)

	_, err = b.Do(ctx, snap.SessionID, func(ctx context.Context, c *wizard.Controller) error {
		return c.SetAnswer(ctx, "name", "Ada")
	})
	require.NoError(t, err)

	got, err := a.Do(ctx, snap.SessionID, func(ctx context.Context, c *wizard.Controller) error {
		return c.SetAnswer(ctx, "email", "ada@example.org")
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Answers["name"], "answer written by the other replica survives")
	assert.Equal(t, "ada@example.org", got.Answers["email"])
	assert.EqualValues(t, 3, got.Revision)

	stored, err := redis.NewFromClient(client).Load(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.Answers{"name": "Ada", "email": "ada@example.org"}, stored.Answers)

	fromB, err := b.Session(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.org", fromB.Answers["email"], "a cached controller is refreshed on read")
}

func TestEngine_BlurCheckIsPersisted(t *testing.T) {
	subs := memory.NewSubmissions()
	store := memory.NewStore()
	ctx := context.Background()
	_, err := subs.CreateSubmission(ctx, "forms/workshop/submissions", &domain.Submission{
		Data: map[string]any{"email": "ada@example.com"},
	})
	require.NoError(t, err)

	eng, err := formflow.New(registrationForm(t),
		formflow.WithSubmissionStore(subs),
		formflow.WithSessionStore(store),
	)
	require.NoError(t, err)
	defer eng.Shutdown()

	snap, err := eng.Start(ctx, "workshop", domain.Scope{})
	require.NoError(t, err)

	_, err = eng.Do(ctx, snap.SessionID, func(ctx context.Context, c *wizard.Controller) error {
		if err := c.SetAnswer(ctx, "email", "ada@example.com"); err != nil {
			return err
		}
		return c.Blur(ctx, "email")
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		stored, err := store.Load(ctx, snap.SessionID)
		return err == nil && stored.UniqueErrors["email"] != "" && len(stored.Validating) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
