package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/lint"
	"gopkg.in/yaml.v3"
)

// definitionExts lists the accepted definition formats in lookup order.
var definitionExts = []string{".yaml", ".yml", ".json"}

// Definitions implements ports.DefinitionStore over a directory of
// <id>.yaml, <id>.yml or <id>.json documents. Files are read on every call
// so edits are picked up without a restart.
type Definitions struct {
	dir    string
	logger *slog.Logger
}

// DefinitionsOption configures a Definitions store.
type DefinitionsOption func(*Definitions)

// WithLogger sets the logger used for lint findings.
func WithLogger(logger *slog.Logger) DefinitionsOption {
	return func(d *Definitions) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDefinitions creates a definition store rooted at dir.
func NewDefinitions(dir string, opts ...DefinitionsOption) *Definitions {
	d := &Definitions{dir: dir, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetFormDefinition parses, normalizes and lints the definition with the given id.
// Only structurally invalid definitions are rejected.
func (d *Definitions) GetFormDefinition(ctx context.Context, id string) (*domain.FormDefinition, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("%w: %q", domain.ErrFormNotFound, id)
	}

	for _, ext := range definitionExts {
		path := filepath.Join(d.dir, id+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return d.parse(id, ext, data)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFormNotFound, id)
}

// ListForms returns the ids of every definition file in the directory.
func (d *Definitions) ListForms(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isDefinitionExt(ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (d *Definitions) parse(id, ext string, data []byte) (*domain.FormDefinition, error) {
	var def domain.FormDefinition
	var err error
	if ext == ".json" {
		err = json.Unmarshal(data, &def)
	} else {
		err = yaml.Unmarshal(data, &def)
	}
	if err != nil {
		return nil, &domain.DefinitionError{FormID: id, Reason: fmt.Sprintf("cannot decode %s: %v", ext, err)}
	}
	if def.ID == "" {
		def.ID = id
	}

	norm := domain.Normalize(&def)
	if err := norm.Validate(); err != nil {
		return nil, err
	}

	// Lint findings are advisory: the engine tolerates every one of them at runtime.
	for _, issue := range lint.Check(norm) {
		level := slog.LevelWarn
		if issue.Severity == lint.SeverityError {
			level = slog.LevelError
		}
		d.logger.Log(context.Background(), level, "form definition issue", "form", id, "issue", issue.String())
	}
	return norm, nil
}

func isDefinitionExt(ext string) bool {
	for _, e := range definitionExts {
		if e == ext {
			return true
		}
	}
	return false
}
