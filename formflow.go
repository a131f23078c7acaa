package formflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/adapters/memory"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/sanitize"
	"github.com/aretw0/formflow/pkg/session"
	"github.com/aretw0/formflow/pkg/submission"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/visibility"
	"github.com/aretw0/formflow/pkg/wizard"
	"github.com/google/uuid"
)

// ChangeListener receives the difference between two consecutive persisted
// snapshots of a session.
type ChangeListener func(sessionID string, diff *domain.SnapshotDiff)

// Engine is the high-level entry point for the formflow library.
// It owns the stores, keeps live wizard controllers per session and persists
// every change through the session manager.
type Engine struct {
	definitions ports.DefinitionStore
	submissions ports.SubmissionStore
	uploader    ports.FileUploader
	sessions    *session.Manager
	pipeline    *submission.Pipeline

	sessionStore ports.SessionStore
	locker       ports.DistributedLocker
	policy       validation.FailurePolicy
	stale        wizard.StalePolicy
	resetAfter   time.Duration
	sanitizer    *sanitize.Sanitizer
	hooks        domain.LifecycleHooks
	logger       *slog.Logger

	mu        sync.Mutex
	live      map[string]*liveSession
	listeners []ChangeListener
}

type liveSession struct {
	persistMu sync.Mutex
	ctrl      *wizard.Controller
	last      *domain.Snapshot
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSubmissionStore sets where submissions are written and uniqueness is checked.
// Defaults to an in-memory store.
func WithSubmissionStore(s ports.SubmissionStore) Option {
	return func(e *Engine) {
		e.submissions = s
	}
}

// WithSessionStore sets where wizard snapshots are persisted. Defaults to memory.
func WithSessionStore(s ports.SessionStore) Option {
	return func(e *Engine) {
		e.sessionStore = s
	}
}

// WithLocker enables distributed per-session locking.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithUploader enables file fields.
func WithUploader(u ports.FileUploader) Option {
	return func(e *Engine) {
		e.uploader = u
	}
}

// WithFailurePolicy sets how uniqueness checks treat store errors.
func WithFailurePolicy(p validation.FailurePolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithStalePolicy sets how late uniqueness results are handled.
func WithStalePolicy(p wizard.StalePolicy) Option {
	return func(e *Engine) {
		e.stale = p
	}
}

// WithResetAfter sets the delay before a submitted generic form clears itself.
func WithResetAfter(d time.Duration) Option {
	return func(e *Engine) {
		e.resetAfter = d
	}
}

// WithSanitizer replaces the default answer sanitizer.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(e *Engine) {
		e.sanitizer = s
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine reading form definitions from defs.
func New(defs ports.DefinitionStore, opts ...Option) (*Engine, error) {
	if defs == nil {
		return nil, errors.New("a definition store is required")
	}
	e := &Engine{
		definitions: defs,
		policy:      validation.FailOpen,
		stale:       wizard.StaleDiscard,
		resetAfter:  wizard.DefaultResetAfter,
		sanitizer:   sanitize.New(),
		live:        make(map[string]*liveSession),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.submissions == nil {
		e.submissions = memory.NewSubmissions()
	}
	if e.sessionStore == nil {
		e.sessionStore = memory.NewStore()
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.sessionStore, sessionOpts...)

	checker := validation.NewUniquenessChecker(e.submissions,
		validation.WithFailurePolicy(e.policy),
		validation.WithLogger(e.logger),
	)
	e.pipeline = submission.New(e.submissions,
		submission.WithUniquenessChecker(checker),
		submission.WithLogger(e.logger),
	)
	return e, nil
}

// Definitions returns the definition store.
func (e *Engine) Definitions() ports.DefinitionStore {
	return e.definitions
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Pipeline returns the submission pipeline shared by every session.
func (e *Engine) Pipeline() *submission.Pipeline {
	return e.pipeline
}

// OnChange registers a listener for persisted session changes.
func (e *Engine) OnChange(fn ChangeListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Form loads a form definition.
func (e *Engine) Form(ctx context.Context, formID string) (*domain.FormDefinition, error) {
	def, err := e.definitions.GetFormDefinition(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to load form %s: %w", formID, err)
	}
	return def, nil
}

// ListForms lists the available form ids.
func (e *Engine) ListForms(ctx context.Context) ([]string, error) {
	return e.definitions.ListForms(ctx)
}

// DefaultScope returns the generic-form scope of formID.
func DefaultScope(formID string) domain.Scope {
	return domain.Scope{Kind: domain.ScopeForm, ID: formID}
}

// Start opens a new wizard session for formID. An empty scope id means the
// generic form scope of formID.
func (e *Engine) Start(ctx context.Context, formID string, scope domain.Scope) (*domain.Snapshot, error) {
	def, err := e.Form(ctx, formID)
	if err != nil {
		return nil, err
	}
	if scope.ID == "" {
		scope = DefaultScope(formID)
	}

	sessionID := uuid.NewString()
	var snap *domain.Snapshot
	err = e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		ls := &liveSession{}
		ctrl, err := wizard.New(def, scope, e.pipeline, e.wizardOptions(sessionID)...)
		if err != nil {
			return err
		}
		ls.ctrl = ctrl
		e.register(sessionID, ls)

		snap, err = e.save(ctx, sessionID, ls)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("session started", "session_id", sessionID, "form", formID, "scope", scope.String())
	return snap, nil
}

// Session returns the latest snapshot of a session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return e.Do(ctx, sessionID, func(context.Context, *wizard.Controller) error { return nil })
}

// Do runs fn against the live controller of a session while holding the session
// lock. Sessions not live in this process are restored from the session store.
// It returns the snapshot taken after fn, even when fn fails.
func (e *Engine) Do(ctx context.Context, sessionID string, fn func(context.Context, *wizard.Controller) error) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	var fnErr error
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		ls, err := e.acquire(ctx, sessionID)
		if err != nil {
			return err
		}
		fnErr = fn(ctx, ls.ctrl)
		snap = ls.ctrl.Snapshot()
		snap.Revision = ls.revision()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, fnErr
}

// Controller returns the live controller of a session, restoring it if needed.
// Callers mutating it outside Do give up cross-replica serialization.
func (e *Engine) Controller(ctx context.Context, sessionID string) (*wizard.Controller, error) {
	var ctrl *wizard.Controller
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		ls, err := e.acquire(ctx, sessionID)
		if err != nil {
			return err
		}
		ctrl = ls.ctrl
		return nil
	})
	return ctrl, err
}

// Evict drops the live controller of a session. The persisted snapshot stays.
func (e *Engine) Evict(sessionID string) {
	e.mu.Lock()
	ls, ok := e.live[sessionID]
	delete(e.live, sessionID)
	e.mu.Unlock()
	if ok {
		ls.ctrl.Close()
	}
}

// Delete evicts and removes a session.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	e.Evict(sessionID)
	return e.sessions.Delete(ctx, sessionID)
}

// Shutdown waits for in-flight checks and submissions of every live session and
// evicts them all.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	live := e.live
	e.live = make(map[string]*liveSession)
	e.mu.Unlock()

	for _, ls := range live {
		ls.ctrl.Wait()
		ls.ctrl.Close()
	}
}

// Resolve computes the visible sections of formID for answers.
func (e *Engine) Resolve(ctx context.Context, formID string, answers domain.Answers) (visibility.Result, error) {
	def, err := e.Form(ctx, formID)
	if err != nil {
		return visibility.Result{}, err
	}
	return visibility.Resolve(def, answers), nil
}

// ValidateField validates one value of formID synchronously, including the
// uniqueness query for unique fields.
func (e *Engine) ValidateField(ctx context.Context, formID string, scope domain.Scope, fieldID string, value any) (validation.Result, error) {
	def, err := e.Form(ctx, formID)
	if err != nil {
		return validation.Result{}, err
	}
	field, ok := def.Field(fieldID)
	if !ok {
		return validation.Result{}, fmt.Errorf("%w: %s", wizard.ErrUnknownField, fieldID)
	}
	cleaned, err := e.sanitizer.Value(value)
	if err != nil {
		return validation.Result{}, err
	}

	answers := domain.Answers{}
	if !domain.IsEmpty(cleaned) {
		answers[fieldID] = cleaned
	}
	res := validation.ValidateField(*field, answers, nil)
	if !res.OK || !field.IsUnique {
		return res, nil
	}
	if scope.ID == "" {
		scope = DefaultScope(formID)
	}
	res, _ = e.pipeline.Checker().Check(ctx, scope, *field, cleaned)
	return res, nil
}

// Submit validates and stores answers for formID without a wizard session.
func (e *Engine) Submit(ctx context.Context, formID string, scope domain.Scope, answers domain.Answers, files domain.UploadedFiles) (*domain.Submission, error) {
	def, err := e.Form(ctx, formID)
	if err != nil {
		return nil, err
	}
	if scope.ID == "" {
		scope = DefaultScope(formID)
	}

	clean := make(domain.Answers, len(answers))
	for k, v := range answers {
		cv, err := e.sanitizer.Value(v)
		if err != nil {
			return nil, fmt.Errorf("answer %s: %w", k, err)
		}
		if !domain.IsEmpty(cv) {
			clean[k] = cv
		}
	}
	return e.pipeline.Submit(ctx, submission.Request{
		Definition: def,
		Scope:      scope,
		Answers:    clean,
		Files:      files,
	})
}

func (e *Engine) wizardOptions(sessionID string) []wizard.Option {
	opts := []wizard.Option{
		wizard.WithSessionID(sessionID),
		wizard.WithLogger(e.logger),
		wizard.WithHooks(e.hooks),
		wizard.WithStalePolicy(e.stale),
		wizard.WithResetAfter(e.resetAfter),
		wizard.WithSanitizer(e.sanitizer),
		wizard.WithOnChange(func(*domain.Snapshot) { e.persist(sessionID) }),
	}
	if e.uploader != nil {
		opts = append(opts, wizard.WithUploader(e.uploader))
	}
	return opts
}

// acquire returns the live session, restoring it from the store when it is
// absent or when the stored revision shows another replica wrote it since.
// The caller holds the session lock.
func (e *Engine) acquire(ctx context.Context, sessionID string) (*liveSession, error) {
	ls := e.lookup(sessionID)

	snap, err := e.sessionStore.Load(ctx, sessionID)
	if err != nil {
		if ls != nil && errors.Is(err, domain.ErrSessionNotFound) {
			e.Evict(sessionID)
		}
		return nil, err
	}
	if ls != nil {
		if ls.revision() == snap.Revision {
			return ls, nil
		}
		e.logger.Debug("session changed elsewhere, reloading",
			"session_id", sessionID, "local_revision", ls.revision(), "stored_revision", snap.Revision)
		e.Evict(sessionID)
	}

	def, err := e.Form(ctx, snap.FormID)
	if err != nil {
		return nil, err
	}
	ctrl, err := wizard.Restore(def, snap, e.pipeline, e.wizardOptions(sessionID)...)
	if err != nil {
		return nil, err
	}

	ls = &liveSession{ctrl: ctrl, last: snap}
	e.register(sessionID, ls)
	e.logger.Debug("session restored", "session_id", sessionID, "form", snap.FormID, "revision", snap.Revision)
	return ls, nil
}

// revision returns the revision of the last snapshot this process stored.
func (ls *liveSession) revision() int64 {
	ls.persistMu.Lock()
	defer ls.persistMu.Unlock()
	if ls.last == nil {
		return 0
	}
	return ls.last.Revision
}

func (e *Engine) register(sessionID string, ls *liveSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.live[sessionID] = ls
}

func (e *Engine) lookup(sessionID string) *liveSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live[sessionID]
}

// persist saves the current state of a live session.
func (e *Engine) persist(sessionID string) {
	ls := e.lookup(sessionID)
	if ls == nil || ls.ctrl == nil {
		return
	}
	if _, err := e.save(context.Background(), sessionID, ls); err != nil {
		e.logger.Error("failed to persist session", "session_id", sessionID, "err", err)
	}
}

// save stores a fresh snapshot taken under persistMu, so concurrent
// notifications never store an older state over a newer one.
// It bypasses the session manager lock: it runs from controller callbacks
// that may fire while Do holds that lock. A snapshot whose stored revision moved
// on is left alone; the next Do reloads it.
func (e *Engine) save(ctx context.Context, sessionID string, ls *liveSession) (*domain.Snapshot, error) {
	ls.persistMu.Lock()
	defer ls.persistMu.Unlock()

	snap := ls.ctrl.Snapshot()
	diff := domain.Diff(ls.last, snap)
	if ls.last != nil && diff == nil {
		snap.Revision = ls.last.Revision
		return snap, nil
	}

	if ls.last != nil {
		snap.Revision = ls.last.Revision
		stored, err := e.sessionStore.Load(ctx, sessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			// Deleted while a callback was in flight.
			return snap, nil
		}
		if err != nil {
			return nil, err
		}
		if stored.Revision != ls.last.Revision {
			e.logger.Warn("session written by another replica, local change dropped",
				"session_id", sessionID, "local_revision", ls.last.Revision, "stored_revision", stored.Revision)
			return snap, nil
		}
	}
	snap.Revision++
	if err := e.sessionStore.Save(ctx, sessionID, snap); err != nil {
		return nil, err
	}
	ls.last = snap

	if diff == nil {
		return snap, nil
	}
	e.mu.Lock()
	listeners := append([]ChangeListener(nil), e.listeners...)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(sessionID, diff)
	}
	return snap, nil
}
