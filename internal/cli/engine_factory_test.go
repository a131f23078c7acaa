package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/formflow/internal/config"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/internal/testutils"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rsvpForm = `
id: rsvp
title: RSVP
sections:
  - id: main
    title: Will you come?
    fields:
      - id: name
        label: Name
        type: text
        required: true
      - id: email
        label: Email
        type: email
        required: true
        isUnique: true
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	forms := filepath.Join(dir, "forms")
	testutils.WriteForms(t, forms, map[string]string{"rsvp.yaml": rsvpForm})

	cfg, err := config.Load(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	cfg.FormsDir = forms
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.SQLitePath = filepath.Join(cfg.DataDir, "submissions.db")
	cfg.UploadDir = filepath.Join(cfg.DataDir, "uploads")
	cfg.ResetAfter = 0
	return cfg
}

func answerRSVP(t *testing.T, rt *Runtime, email string) (*domain.Snapshot, error) {
	t.Helper()
	ctx := context.Background()
	snap, err := rt.Engine.Start(ctx, "rsvp", domain.Scope{})
	require.NoError(t, err)
	return rt.Engine.Do(ctx, snap.SessionID, func(ctx context.Context, c *wizard.Controller) error {
		if err := c.SetAnswer(ctx, "name", "Ada"); err != nil {
			return err
		}
		if err := c.SetAnswer(ctx, "email", email); err != nil {
			return err
		}
		_, err := c.Advance(ctx)
		return err
	})
}

func TestBuild_Defaults(t *testing.T) {
	cfg := testConfig(t)
	rt, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.Registry)
	assert.Nil(t, rt.Loam)

	snap, err := answerRSVP(t, rt, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, snap.Phase)

	// Sessions land on disk, submissions in sqlite.
	ids, err := rt.Sessions.List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, snap.SessionID)
	assert.FileExists(t, cfg.SQLitePath)

	_, err = answerRSVP(t, rt, "ada@example.com")
	assert.Error(t, err, "the sqlite store answers the uniqueness query")

	families, err := rt.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "formflow_submissions_total")
}

func TestBuild_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.SessionBackend = config.BackendRedis
	cfg.SubmissionBackend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	cfg.Metrics = false
	cfg.EncryptionKey = strings.Repeat("k", 32)

	rt, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.Registry)

	snap, err := answerRSVP(t, rt, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, snap.Phase)

	// The stored snapshot is encrypted, so the raw value never shows the answer.
	var found bool
	for _, key := range mr.Keys() {
		if strings.Contains(key, snap.SessionID) {
			raw, err := mr.Get(key)
			require.NoError(t, err)
			assert.NotContains(t, raw, "ada@example.com")
			found = true
		}
	}
	assert.True(t, found, "session stored in redis")

	loaded, err := rt.Sessions.Load(context.Background(), snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", loaded.Answers["email"])
}

func TestBuild_Memory(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionBackend = config.BackendMemory
	cfg.SubmissionBackend = config.BackendMemory
	cfg.PIIPatterns = []string{"^email$"}

	rt, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	snap, err := answerRSVP(t, rt, "ada@example.com")
	require.NoError(t, err)

	loaded, err := rt.Sessions.Load(context.Background(), snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "***", loaded.Answers["email"])
	assert.Equal(t, "Ada", loaded.Answers["name"])
}

func TestBuild_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionBackend = config.BackendRedis
	cfg.RedisURL = "not a url"
	_, err := Build(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "redis url")

	cfg = testConfig(t)
	cfg.SQLitePath = t.TempDir()
	_, err = Build(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "submissions")
}

func TestLintAndGraph(t *testing.T) {
	cfg := testConfig(t)
	testutils.WriteForms(t, cfg.FormsDir, map[string]string{"broken.yaml": "sections: [unclosed"})

	defs, _, err := NewDefinitions(cfg, logging.NewNop())
	require.NoError(t, err)

	reports, err := Lint(context.Background(), defs)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	var out bytes.Buffer
	failed := PrintReports(&out, reports)
	assert.True(t, failed)
	assert.Contains(t, out.String(), "✗ broken")
	assert.Contains(t, out.String(), "✓ rsvp")

	reports, err = Lint(context.Background(), defs, "rsvp")
	require.NoError(t, err)
	assert.False(t, PrintReports(&bytes.Buffer{}, reports))

	out.Reset()
	require.NoError(t, Graph(context.Background(), defs, "rsvp", &out))
	assert.Contains(t, out.String(), `main(("main <br/> Will you come?"))`)
	assert.Error(t, Graph(context.Background(), defs, "nope", &out))
}

func TestNewDefinitions_Loam(t *testing.T) {
	dir, _ := testutils.SetupFormRepo(t, map[string]string{
		"contact.md": `---
title: Contact
fields:
  - {id: email, label: Email, type: email, required: true}
---
Leave your address.`,
	})
	cfg := testConfig(t)
	cfg.Loader = config.BackendLoam
	cfg.FormsDir = dir

	defs, loader, err := NewDefinitions(cfg, logging.NewNop())
	require.NoError(t, err)
	require.NotNil(t, loader)

	reports, err := Lint(context.Background(), defs)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "contact", reports[0].FormID)
	assert.False(t, reports[0].Failed())
}
