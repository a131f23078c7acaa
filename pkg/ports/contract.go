package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	scope := domain.Scope{Kind: domain.ScopeForm, ID: "contract-form"}

	t.Run("Save and Load", func(t *testing.T) {
		snap := domain.NewSnapshot(sessionID, "contract-form", scope)
		snap.CurrentSection = 2
		snap.Answers["name"] = "Ada"
		snap.Answers["langs"] = []string{"Go", "C"}
		snap.UniqueErrors = map[string]string{"email": "already registered"}

		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, 2, loaded.CurrentSection)
		assert.Equal(t, scope, loaded.Scope)
		assert.Equal(t, "Ada", loaded.Answers["name"])
		// JSON backends return []any for lists, so compare the rendered values.
		assert.Equal(t, []string{"Go", "C"}, domain.AsStrings(loaded.Answers["langs"]))
		assert.Equal(t, "already registered", loaded.UniqueErrors["email"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSnapshot(sessionID, "contract-form", scope))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSnapshot(id1, "contract-form", scope))
		_ = store.Save(ctx, id2, domain.NewSnapshot(id2, "contract-form", scope))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunSubmissionStoreContract verifies that a SubmissionStore implementation
// honours id assignment, collection isolation and key equality queries.
func RunSubmissionStoreContract(t *testing.T, store SubmissionStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	scoped := "forms/contract-" + suffix + "/submissions"
	other := "forms/other-" + suffix + "/submissions"

	newSub := func(email string) *domain.Submission {
		return &domain.Submission{
			FormID:      "contract",
			Scope:       domain.Scope{Kind: domain.ScopeForm, ID: "contract-" + suffix},
			Data:        map[string]any{"full_name": "Ada", "email": email},
			Status:      domain.StatusConfirmed,
			SubmittedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Create assigns id", func(t *testing.T) {
		id, err := store.CreateSubmission(ctx, scoped, newSub("ada@example.com"))
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("Create keeps explicit id", func(t *testing.T) {
		sub := newSub("grace@example.com")
		sub.ID = "explicit-" + suffix
		id, err := store.CreateSubmission(ctx, scoped, sub)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, id)
	})

	t.Run("QueryByKey finds match", func(t *testing.T) {
		hits, err := store.QueryByKey(ctx, scoped, "email", "grace@example.com")
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "explicit-"+suffix, hits[0].ID)
		assert.Equal(t, domain.StatusConfirmed, hits[0].Status)
		assert.Equal(t, "Ada", hits[0].Data["full_name"])
	})

	t.Run("QueryByKey no match", func(t *testing.T) {
		hits, err := store.QueryByKey(ctx, scoped, "email", "nobody@example.com")
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("Collections are isolated", func(t *testing.T) {
		_, err := store.CreateSubmission(ctx, other, newSub("linus@example.com"))
		require.NoError(t, err)

		hits, err := store.QueryByKey(ctx, scoped, "email", "linus@example.com")
		require.NoError(t, err)
		assert.Empty(t, hits)

		hits, err = store.QueryByKey(ctx, other, "email", "linus@example.com")
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("Duplicates are both returned", func(t *testing.T) {
		_, err := store.CreateSubmission(ctx, scoped, newSub("twice@example.com"))
		require.NoError(t, err)
		_, err = store.CreateSubmission(ctx, scoped, newSub("twice@example.com"))
		require.NoError(t, err)

		hits, err := store.QueryByKey(ctx, scoped, "email", "twice@example.com")
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})
}
