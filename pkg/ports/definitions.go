package ports

import (
	"context"

	"github.com/aretw0/formflow/pkg/domain"
)

// DefinitionStore defines how the engine retrieves form definitions.
type DefinitionStore interface {
	// GetFormDefinition returns the definition with the given id.
	// Returns domain.ErrFormNotFound if the form does not exist.
	GetFormDefinition(ctx context.Context, id string) (*domain.FormDefinition, error)

	// ListForms returns the ids of every stored definition.
	ListForms(ctx context.Context) ([]string, error)
}
