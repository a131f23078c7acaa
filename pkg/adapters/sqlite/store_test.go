package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/formflow/pkg/adapters/sqlite"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "submissions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}

func TestStore_Contract(t *testing.T) {
	ports.RunSubmissionStoreContract(t, openTempStore(t))
}

func TestStore_InMemory(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ports.RunSubmissionStoreContract(t, store)
}

func TestStore_DuplicateID(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	sub := &domain.Submission{ID: "fixed", FormID: "f", Data: map[string]any{"a": "1"}}

	_, err := store.CreateSubmission(ctx, "forms/f/submissions", sub)
	require.NoError(t, err)

	_, err = store.CreateSubmission(ctx, "forms/f/submissions", sub)
	assert.ErrorIs(t, err, sqlite.ErrDuplicateID)

	// The same id may live in another collection.
	_, err = store.CreateSubmission(ctx, domain.GlobalCollection, sub)
	assert.NoError(t, err)
}

func TestStore_RoundTripAndOrder(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	collection := domain.Scope{Kind: domain.ScopeActivity, ID: "hack"}.Collection()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.CreateSubmission(ctx, collection, &domain.Submission{
		ID:          "late",
		FormID:      "hack",
		Scope:       domain.Scope{Kind: domain.ScopeActivity, ID: "hack"},
		Data:        map[string]any{"roll_no": 42.0, "tracks": []string{"web", "ml"}},
		Status:      domain.StatusPendingPayment,
		SubmittedAt: at.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = store.CreateSubmission(ctx, collection, &domain.Submission{
		ID:          "early",
		Data:        map[string]any{"roll_no": "42"},
		SubmittedAt: at,
	})
	require.NoError(t, err)

	hits, err := store.QueryByKey(ctx, collection, "roll_no", "42")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "early", hits[0].ID)
	assert.Equal(t, "late", hits[1].ID)
	assert.Equal(t, domain.StatusPendingPayment, hits[1].Status)
	assert.Equal(t, domain.ScopeActivity, hits[1].Scope.Kind)
	assert.True(t, hits[1].SubmittedAt.Equal(at.Add(time.Hour)))

	hits, err = store.QueryByKey(ctx, collection, "tracks", "web, ml")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	all, err := store.List(ctx, collection)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_CanceledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.CreateSubmission(ctx, "c", &domain.Submission{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.QueryByKey(ctx, "c", "k", "v")
	assert.ErrorIs(t, err, context.Canceled)
}
