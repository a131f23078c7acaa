package loam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/lint"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// Loader adapts a Loam repository to the DefinitionStore interface.
// A form is a Markdown document whose frontmatter holds the definition;
// the body becomes the description when none is set.
type Loader struct {
	Repo   *loam.TypedRepository[FormMetadata]
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[FormMetadata], opts ...Option) *Loader {
	l := &Loader{Repo: repo, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open initializes a read-only, strict Loam repository at path and wraps it.
func Open(path string, opts ...Option) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[FormMetadata](repo), opts...), nil
}

// GetFormDefinition loads, decodes and normalizes a form document.
func (l *Loader) GetFormDefinition(ctx context.Context, id string) (*domain.FormDefinition, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFormNotFound, id, err)
	}

	def, err := decodeDefinition(doc.Data)
	if err != nil {
		return nil, &domain.DefinitionError{FormID: id, Reason: err.Error()}
	}

	rawID := doc.Data.ID
	if rawID == "" {
		rawID = doc.ID
	}
	def.ID = trimExtension(rawID)
	if def.Description == "" {
		def.Description = strings.TrimSpace(doc.Content)
	}

	norm := domain.Normalize(def)
	if err := norm.Validate(); err != nil {
		return nil, err
	}
	for _, issue := range lint.Check(norm) {
		level := slog.LevelWarn
		if issue.Severity == lint.SeverityError {
			level = slog.LevelError
		}
		l.logger.Log(ctx, level, "form definition issue", "form", norm.ID, "issue", issue.String())
	}
	l.logger.Debug("form loaded", "form", norm.ID, "sections", len(norm.Sections))
	return norm, nil
}

// ListForms lists every form in the repository.
func (l *Loader) ListForms(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	return ids, nil
}

// Watch emits the id of every form document that changes.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func decodeDefinition(meta FormMetadata) (*domain.FormDefinition, error) {
	def := &domain.FormDefinition{
		Title:       meta.Title,
		Description: meta.Description,
	}
	if err := decode(meta.Sections, &def.Sections); err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	if err := decode(meta.Fields, &def.Fields); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if len(def.Sections) == 0 && len(def.Fields) == 0 {
		return nil, errors.New("document has neither sections nor fields")
	}
	return def, nil
}

func decode(input any, out any) error {
	if input == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
