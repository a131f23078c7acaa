package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendFile, cfg.Loader)
	assert.Equal(t, BackendFile, cfg.SessionBackend)
	assert.Equal(t, BackendSQLite, cfg.SubmissionBackend)
	assert.Equal(t, filepath.Join(".formflow", "submissions.db"), cfg.SQLitePath)
	assert.Equal(t, filepath.Join(".formflow", "uploads"), cfg.UploadDir)
	assert.Equal(t, 3*time.Second, cfg.ResetAfter)
	assert.True(t, cfg.Metrics)
	assert.False(t, cfg.UsesRedis())

	policy, err := cfg.FailurePolicy()
	require.NoError(t, err)
	assert.Equal(t, validation.FailOpen, policy)
	stale, err := cfg.Stale()
	require.NoError(t, err)
	assert.Equal(t, wizard.StaleDiscard, stale)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FORMFLOW_ADDR", ":9090")
	t.Setenv("FORMFLOW_SESSION_BACKEND", "redis")
	t.Setenv("FORMFLOW_UNIQUENESS_POLICY", "closed")
	t.Setenv("FORMFLOW_RESET_AFTER", "500ms")
	t.Setenv("FORMFLOW_PII_PATTERNS", "phone,^cpf$")
	t.Setenv("FORMFLOW_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 500*time.Millisecond, cfg.ResetAfter)
	assert.Equal(t, []string{"phone", "^cpf$"}, cfg.PIIPatterns)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	policy, err := cfg.FailurePolicy()
	require.NoError(t, err)
	assert.Equal(t, validation.FailClosed, policy)
}

func TestLoad_Dotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FORMFLOW_DATA_DIR="+dir+"\nFORMFLOW_FORMS_DIR=defs\n"), 0o644))
	t.Setenv("FORMFLOW_FORMS_DIR", "from-env")
	t.Cleanup(func() { os.Unsetenv("FORMFLOW_DATA_DIR") })

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.FormsDir, "process environment wins over dotenv")
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "submissions.db"), cfg.SQLitePath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  string
		errMsg string
	}{
		{"unknown loader", "FORMFLOW_LOADER", "s3", "FORMFLOW_LOADER"},
		{"unknown session backend", "FORMFLOW_SESSION_BACKEND", "sqlite", "FORMFLOW_SESSION_BACKEND"},
		{"unknown submission backend", "FORMFLOW_SUBMISSION_BACKEND", "file", "FORMFLOW_SUBMISSION_BACKEND"},
		{"bad log level", "FORMFLOW_LOG_LEVEL", "loud", "FORMFLOW_LOG_LEVEL"},
		{"bad policy", "FORMFLOW_UNIQUENESS_POLICY", "maybe", "FORMFLOW_UNIQUENESS_POLICY"},
		{"bad stale policy", "FORMFLOW_STALE_POLICY", "keep", "FORMFLOW_STALE_POLICY"},
		{"short key", "FORMFLOW_ENCRYPTION_KEY", "tooshort", "32 bytes"},
		{"bad pii pattern", "FORMFLOW_PII_PATTERNS", "(", "FORMFLOW_PII_PATTERNS"},
		{"zero input size", "FORMFLOW_MAX_INPUT_SIZE", "0", "FORMFLOW_MAX_INPUT_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("FORMFLOW_RESET_AFTER", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
