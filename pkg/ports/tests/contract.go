package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
)

// DefinitionStoreContractTest is a reusable test suite that verifies if an adapter complies with ports.DefinitionStore.
// The store must already contain the definitions in want, keyed by id.
func DefinitionStoreContractTest(t *testing.T, store ports.DefinitionStore, want map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetFormDefinition_Success", func(t *testing.T) {
		for id, title := range want {
			def, err := store.GetFormDefinition(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error getting form %s: %v", id, err)
			}
			if def.ID != id {
				t.Errorf("id mismatch: got %q, want %q", def.ID, id)
			}
			if def.Title != title {
				t.Errorf("title mismatch for %s: got %q, want %q", id, def.Title, title)
			}
			if len(def.Sections) == 0 {
				t.Errorf("form %s was not normalized into sections", id)
			}
			if def.Fields != nil {
				t.Errorf("form %s still carries legacy fields", id)
			}
		}
	})

	t.Run("GetFormDefinition_NotFound", func(t *testing.T) {
		_, err := store.GetFormDefinition(ctx, "non-existent-form")
		if !errors.Is(err, domain.ErrFormNotFound) {
			t.Errorf("expected ErrFormNotFound, got %v", err)
		}
	})

	t.Run("ListForms", func(t *testing.T) {
		ids, err := store.ListForms(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing forms: %v", err)
		}

		found := make(map[string]bool)
		for _, id := range ids {
			found[id] = true
		}
		for id := range want {
			if !found[id] {
				t.Errorf("ListForms missing expected form %s", id)
			}
		}
	})
}
