package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/formflow/pkg/domain"
)

// Definitions implements ports.DefinitionStore using an in-memory map.
// Definitions are normalized when added.
type Definitions struct {
	mu    sync.RWMutex
	forms map[string]*domain.FormDefinition
}

// NewDefinitions creates a store holding the given definitions.
func NewDefinitions(defs ...*domain.FormDefinition) (*Definitions, error) {
	d := &Definitions{forms: make(map[string]*domain.FormDefinition)}
	for _, def := range defs {
		if err := d.Put(def); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// NewDefinitionsFromJSON creates a store from raw JSON documents keyed by form id.
// This keeps fixtures readable in tests.
func NewDefinitionsFromJSON(data map[string]string) (*Definitions, error) {
	d := &Definitions{forms: make(map[string]*domain.FormDefinition)}
	for id, raw := range data {
		var def domain.FormDefinition
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			return nil, fmt.Errorf("failed to decode form %s: %w", id, err)
		}
		if def.ID == "" {
			def.ID = id
		}
		if err := d.Put(&def); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Put adds or replaces a definition after normalizing and validating it.
func (d *Definitions) Put(def *domain.FormDefinition) error {
	norm := domain.Normalize(def)
	if err := norm.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.forms[norm.ID] = norm
	return nil
}

// GetFormDefinition returns a copy of the stored definition.
func (d *Definitions) GetFormDefinition(ctx context.Context, id string) (*domain.FormDefinition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	def, ok := d.forms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFormNotFound, id)
	}
	return def.Clone(), nil
}

// ListForms returns all form ids in sorted order.
func (d *Definitions) ListForms(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.forms))
	for id := range d.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
