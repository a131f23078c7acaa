package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/aretw0/formflow/internal/presentation/graph"
	"github.com/aretw0/formflow/pkg/ports"
)

// ListSessions writes one line per stored session.
func ListSessions(ctx context.Context, store ports.SessionStore, w io.Writer) error {
	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No active sessions found.")
		return nil
	}
	sort.Strings(ids)

	fmt.Fprintln(w, "Active Sessions:")
	for _, id := range ids {
		snap, err := store.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "- %s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(w, "- %s  form=%s scope=%s phase=%s section=%d\n",
			id, snap.FormID, snap.Scope.String(), snap.Phase, snap.CurrentSection)
	}
	return nil
}

// InspectSession writes the stored snapshot as indented JSON, or as a Mermaid
// graph of its form with the session overlay when defs is given.
func InspectSession(ctx context.Context, store ports.SessionStore, defs ports.DefinitionStore, sessionID string, w io.Writer) error {
	snap, err := store.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session %q: %w", sessionID, err)
	}

	if defs != nil {
		def, err := defs.GetFormDefinition(ctx, snap.FormID)
		if err != nil {
			return err
		}
		fmt.Fprint(w, graph.GenerateMermaid(def, graph.OverlayFromSnapshot(def, snap)))
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// RemoveSessions deletes every listed session, or all of them when all is set.
// It returns the ids that failed.
func RemoveSessions(ctx context.Context, store ports.SessionStore, ids []string, all bool, w io.Writer) ([]string, error) {
	if all {
		var err error
		if ids, err = store.List(ctx); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
	}
	var failed []string
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			failed = append(failed, id)
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", id)
	}
	return failed, nil
}

// Graph writes the Mermaid section graph of a form.
func Graph(ctx context.Context, defs ports.DefinitionStore, formID string, w io.Writer) error {
	def, err := defs.GetFormDefinition(ctx, formID)
	if err != nil {
		return err
	}
	fmt.Fprint(w, graph.GenerateMermaid(def, nil))
	return nil
}
