package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/internal/config"
	"github.com/aretw0/formflow/internal/presentation/tui"
	"github.com/aretw0/formflow/pkg/domain"
	"golang.org/x/term"
)

// FillOptions contains all the configuration for the fill command.
type FillOptions struct {
	FormID    string
	ScopeKind string
	ScopeID   string
	SessionID string
	Fresh     bool
	Debug     bool
	// Plain disables the banner and Markdown rendering even on a terminal.
	Plain bool
}

// Scope returns the submission scope selected by the options.
func (o FillOptions) Scope() (domain.Scope, error) {
	switch domain.ScopeKind(strings.ToLower(o.ScopeKind)) {
	case "", domain.ScopeForm:
		return domain.Scope{Kind: domain.ScopeForm, ID: o.ScopeID}, nil
	case domain.ScopeActivity:
		if o.ScopeID == "" {
			return domain.Scope{}, errors.New("--activity requires an id")
		}
		return domain.Scope{Kind: domain.ScopeActivity, ID: o.ScopeID}, nil
	}
	return domain.Scope{}, fmt.Errorf("unknown scope kind %q", o.ScopeKind)
}

// RunFill answers a form interactively on the terminal.
func RunFill(cfg *config.Config, opts FillOptions) error {
	scope, err := opts.Scope()
	if err != nil {
		return err
	}

	logger := NewLogger(opts.Debug, cfg.Level())
	rich := !opts.Plain && term.IsTerminal(int(os.Stdout.Fd()))
	if rich {
		tui.PrintBanner(formflow.Version)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	rt, err := Build(sigCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.Fresh && opts.SessionID != "" {
		if err := rt.Engine.Delete(sigCtx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			logger.Warn("failed to reset session", "session_id", opts.SessionID, "err", err)
		}
	}

	f := &Filler{
		Engine: rt.Engine,
		In:     NewInterruptibleReader(os.Stdin, sigCtx.Done()),
		Out:    os.Stdout,
		Logger: logger,
	}
	if rich {
		f.Render = tui.NewRenderer()
	}

	snap, err := f.Fill(sigCtx, opts.FormID, scope, opts.SessionID)
	if isInterrupted(err) && snap != nil {
		fmt.Println()
		printSystemMessage(os.Stdout, "Interrupted. Resume with --session %s.", snap.SessionID)
	}
	return handleExecutionError(err)
}
