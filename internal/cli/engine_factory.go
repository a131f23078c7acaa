package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/internal/config"
	"github.com/aretw0/formflow/pkg/adapters/file"
	"github.com/aretw0/formflow/pkg/adapters/loam"
	"github.com/aretw0/formflow/pkg/adapters/memory"
	"github.com/aretw0/formflow/pkg/adapters/redis"
	"github.com/aretw0/formflow/pkg/adapters/sqlite"
	"github.com/aretw0/formflow/pkg/observability"
	"github.com/aretw0/formflow/pkg/persistence/middleware"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/sanitize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// Runtime is a fully wired engine plus the resources it owns.
type Runtime struct {
	Engine   *formflow.Engine
	Sessions ports.SessionStore
	// Registry is nil when metrics are disabled.
	Registry *prometheus.Registry
	// Loam is set when definitions come from a Loam repository.
	Loam *loam.Loader

	closers []func() error
}

// Close shuts the engine down and releases every backend connection.
func (r *Runtime) Close() error {
	if r.Engine != nil {
		r.Engine.Shutdown()
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewDefinitions opens the configured definition store.
func NewDefinitions(cfg *config.Config, logger *slog.Logger) (ports.DefinitionStore, *loam.Loader, error) {
	switch cfg.Loader {
	case config.BackendLoam:
		l, err := loam.Open(cfg.FormsDir, loam.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return l, l, nil
	default:
		return file.NewDefinitions(cfg.FormsDir, file.WithLogger(logger)), nil, nil
	}
}

// NewSessionStore opens the configured session store, without middleware.
func NewSessionStore(cfg *config.Config, client *backend.Client) (ports.SessionStore, error) {
	switch cfg.SessionBackend {
	case config.BackendMemory:
		return memory.NewStore(), nil
	case config.BackendRedis:
		if client == nil {
			return nil, errors.New("redis session store requires a redis client")
		}
		return redis.NewFromClient(client,
			redis.WithTTL(cfg.SessionTTL),
			redis.WithPrefix(cfg.RedisPrefix+"session:"),
		), nil
	default:
		return file.New(filepath.Join(cfg.DataDir, "sessions")), nil
	}
}

// Build wires an engine from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	defs, loader, err := NewDefinitions(cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("definitions: %w", err))
	}
	rt.Loam = loader

	var client *backend.Client
	if cfg.UsesRedis() {
		opts, err := backend.ParseURL(cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("redis url: %w", err))
		}
		client = backend.NewClient(opts)
		rt.closers = append(rt.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("redis ping: %w", err))
		}
	}

	subs, err := newSubmissionStore(cfg, client, rt)
	if err != nil {
		return fail(fmt.Errorf("submissions: %w", err))
	}

	sessions, err := NewSessionStore(cfg, client)
	if err != nil {
		return fail(fmt.Errorf("sessions: %w", err))
	}
	rt.Sessions = middleware.Chain(sessions, sessionMiddleware(cfg)...)

	policy, _ := cfg.FailurePolicy()
	stale, _ := cfg.Stale()

	hooks := observability.LoggingHooks(logger)
	if cfg.Metrics {
		rt.Registry = prometheus.NewRegistry()
		rt.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		hooks = hooks.Merge(observability.NewMetrics(rt.Registry).Hooks())
	}

	opts := []formflow.Option{
		formflow.WithLogger(logger),
		formflow.WithSubmissionStore(subs),
		formflow.WithSessionStore(rt.Sessions),
		formflow.WithUploader(file.NewUploader(cfg.UploadDir)),
		formflow.WithFailurePolicy(policy),
		formflow.WithStalePolicy(stale),
		formflow.WithResetAfter(cfg.ResetAfter),
		formflow.WithSanitizer(sanitize.New(sanitize.WithMaxSize(cfg.MaxInputSize))),
		formflow.WithLifecycleHooks(hooks),
	}
	if client != nil {
		opts = append(opts, formflow.WithLocker(redis.NewLocker(client, cfg.RedisPrefix)))
	}

	eng, err := formflow.New(defs, opts...)
	if err != nil {
		return fail(fmt.Errorf("engine: %w", err))
	}
	rt.Engine = eng
	logger.Debug("engine ready",
		"loader", cfg.Loader,
		"sessions", cfg.SessionBackend,
		"submissions", cfg.SubmissionBackend,
		"metrics", cfg.Metrics)
	return rt, nil
}

func newSubmissionStore(cfg *config.Config, client *backend.Client, rt *Runtime) (ports.SubmissionStore, error) {
	switch cfg.SubmissionBackend {
	case config.BackendMemory:
		return memory.NewSubmissions(), nil
	case config.BackendRedis:
		return redis.NewSubmissions(client, cfg.RedisPrefix), nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, store.Close)
		return store, nil
	}
}

func sessionMiddleware(cfg *config.Config) []middleware.Middleware {
	var mws []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PIIPatterns))
	}
	if cfg.EncryptionKey != "" {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey: []byte(cfg.EncryptionKey),
		}))
	}
	return mws
}
