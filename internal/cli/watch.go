package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/formflow/pkg/adapters/loam"
)

// watchSettle is how long a burst of file events is coalesced before re-linting.
const watchSettle = 100 * time.Millisecond

// WatchDefinitions re-lints forms of a Loam repository whenever their documents
// change, until ctx is cancelled.
func WatchDefinitions(ctx context.Context, loader *loam.Loader, w io.Writer, logger *slog.Logger) error {
	events, err := loader.Watch(ctx)
	if err != nil {
		return err
	}
	printSystemMessage(w, "Watching for changes...")

	pending := make(map[string]bool)
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-events:
			if !ok {
				return nil
			}
			logger.Debug("Change detected", "form", id)
			pending[id] = true
			settle = time.After(watchSettle)
		case <-settle:
			ids := make([]string, 0, len(pending))
			for id := range pending {
				ids = append(ids, id)
			}
			pending = make(map[string]bool)
			settle = nil

			printSystemMessage(w, "Change detected in %v.", ids)
			reports, err := Lint(ctx, loader, ids...)
			if err != nil {
				logger.Error("Lint failed", "err", err)
				continue
			}
			PrintReports(w, reports)
		}
	}
}
