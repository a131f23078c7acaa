package wizard

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/sanitize"
)

// StalePolicy decides what happens to a uniqueness result that arrives after the
// field was edited again.
type StalePolicy string

const (
	// StaleDiscard drops results for outdated generations.
	StaleDiscard StalePolicy = "discard"
	// StaleApply applies every result as it arrives, even if it is out of date.
	StaleApply StalePolicy = "apply"
)

// ParseStalePolicy converts a configuration string into a StalePolicy.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch StalePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StaleDiscard:
		return StaleDiscard, nil
	case StaleApply:
		return StaleApply, nil
	}
	return "", fmt.Errorf("unknown stale result policy %q", s)
}

// DefaultResetAfter is how long a generic form shows its success state before clearing.
const DefaultResetAfter = 3 * time.Second

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = c.hooks.Merge(h)
	}
}

// WithStalePolicy sets the stale result policy. Defaults to StaleDiscard.
func WithStalePolicy(p StalePolicy) Option {
	return func(c *Controller) {
		c.stale = p
	}
}

// WithResetAfter sets the display delay before a submitted generic form clears
// its answers. Zero or negative disables the reset.
func WithResetAfter(d time.Duration) Option {
	return func(c *Controller) {
		c.resetAfter = d
	}
}

// WithUploader sets the collaborator used by AttachFiles.
func WithUploader(u ports.FileUploader) Option {
	return func(c *Controller) {
		c.uploader = u
	}
}

// WithSanitizer replaces the default answer sanitizer.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(c *Controller) {
		c.sanitizer = s
	}
}

// WithSessionID sets the id reported in snapshots and events.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		c.sessionID = id
	}
}

// WithOnChange registers a callback that receives a snapshot after every state change.
// It is called without the controller lock held, possibly from a check goroutine.
func WithOnChange(fn func(*domain.Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}
