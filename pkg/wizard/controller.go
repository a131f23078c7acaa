package wizard

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/aretw0/formflow/pkg/sanitize"
	"github.com/aretw0/formflow/pkg/submission"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/visibility"
	"github.com/google/uuid"
)

const (
	msgInvalid   = "Please complete the highlighted fields before continuing."
	msgDuplicate = "Some answers are already registered. Please change them to continue."
	msgPending   = "Please wait while we verify your answers."
	msgNoUpload  = "file uploads are not available"
)

// Controller holds the state of one wizard session. It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	def      *domain.FormDefinition
	scope    domain.Scope
	pipeline *submission.Pipeline
	checker  *validation.UniquenessChecker

	sessionID  string
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	stale      StalePolicy
	resetAfter time.Duration
	uploader   ports.FileUploader
	sanitizer  *sanitize.Sanitizer
	onChange   func(*domain.Snapshot)

	current      int
	answers      domain.Answers
	files        domain.UploadedFiles
	touched      map[string]bool
	validating   map[string]uint64
	generation   map[string]uint64
	uniqueErrors map[string]string
	uploadErrors map[string]string
	phase        domain.Phase
	submissionID string

	pending    sync.WaitGroup
	resetTimer *time.Timer
}

// New creates a controller positioned at the first section of def.
// The definition is normalized and validated; a malformed one returns a *domain.DefinitionError.
func New(def *domain.FormDefinition, scope domain.Scope, pipeline *submission.Pipeline, opts ...Option) (*Controller, error) {
	norm := domain.Normalize(def)
	if err := norm.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		def:          norm,
		scope:        scope,
		pipeline:     pipeline,
		checker:      pipeline.Checker(),
		sessionID:    uuid.NewString(),
		logger:       logging.NewNop(),
		stale:        StaleDiscard,
		resetAfter:   DefaultResetAfter,
		sanitizer:    sanitize.New(),
		answers:      make(domain.Answers),
		files:        make(domain.UploadedFiles),
		touched:      make(map[string]bool),
		validating:   make(map[string]uint64),
		generation:   make(map[string]uint64),
		uniqueErrors: make(map[string]string),
		uploadErrors: make(map[string]string),
		phase:        domain.PhaseEditing,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Restore recreates a controller from a persisted snapshot.
// In-flight checks cannot survive a restart, so the validating set is dropped and
// an interrupted submission returns to editing.
func Restore(def *domain.FormDefinition, snap *domain.Snapshot, pipeline *submission.Pipeline, opts ...Option) (*Controller, error) {
	opts = append([]Option{WithSessionID(snap.SessionID)}, opts...)
	c, err := New(def, snap.Scope, pipeline, opts...)
	if err != nil {
		return nil, err
	}

	c.answers = snap.Answers.Clone()
	c.files = snap.UploadedFiles.Clone()
	for _, id := range snap.Touched {
		c.touched[id] = true
	}
	for k, v := range snap.UniqueErrors {
		c.uniqueErrors[k] = v
	}
	for k, v := range snap.UploadErrors {
		c.uploadErrors[k] = v
	}
	c.phase = snap.Phase
	if c.phase == domain.PhaseSubmitting || c.phase == "" {
		c.phase = domain.PhaseEditing
	}
	c.submissionID = snap.SubmissionID

	c.current = snap.CurrentSection
	if c.current < 0 || c.current >= len(c.def.Sections) {
		c.current = 0
	}
	c.reconcileLocked()
	return c, nil
}

// Definition returns the normalized definition driving the session.
func (c *Controller) Definition() *domain.FormDefinition {
	return c.def
}

// SessionID returns the id reported in snapshots and events.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Visible returns the current visible set.
func (c *Controller) Visible() visibility.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return visibility.Resolve(c.def, c.answers)
}

// Current returns the index and definition of the current section.
func (c *Controller) Current() (int, domain.Section) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.def.Sections[c.current]
}

// VisibleFields returns the fields of the current section that are shown.
func (c *Controller) VisibleFields() []domain.Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	return visibility.VisibleFields(c.def.Sections[c.current], c.answers)
}

// Phase returns the lifecycle stage of the session.
func (c *Controller) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Errors returns the messages to show next to fields: synchronous failures of touched
// visible fields in the current section, then uniqueness and upload errors.
func (c *Controller) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string)
	section := c.def.Sections[c.current]
	for _, f := range visibility.VisibleFields(section, c.answers) {
		if !c.touched[f.ID] {
			continue
		}
		if res := validation.ValidateField(f, c.answers, c.files); !res.OK {
			out[f.ID] = res.Message
		}
	}
	for k, v := range c.uniqueErrors {
		out[k] = v
	}
	for k, v := range c.uploadErrors {
		out[k] = v
	}
	return out
}

// SetAnswer records the value of a field and re-derives visibility.
// String values are sanitized; blank values clear the answer. Editing a field clears
// its uniqueness error. When the new value of a visible field selects an option mapped
// to the submit sentinel and the current section is valid, a submission starts in
// the background.
func (c *Controller) SetAnswer(ctx context.Context, fieldID string, value any) error {
	c.mu.Lock()
	if c.phase != domain.PhaseEditing {
		c.mu.Unlock()
		return ErrNotEditable
	}
	field, ok := c.def.Field(fieldID)
	if !ok {
		c.mu.Unlock()
		return ErrUnknownField
	}
	if !field.CollectsAnswer() || field.Type == domain.FieldFile {
		c.mu.Unlock()
		return ErrNotAnswerable
	}

	cleaned, err := c.sanitizer.Value(value)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	if domain.IsEmpty(cleaned) {
		delete(c.answers, fieldID)
	} else {
		c.answers[fieldID] = cleaned
	}
	c.touched[fieldID] = true
	delete(c.uniqueErrors, fieldID)

	// A new value starts a new generation: any check in flight now describes an old value.
	c.generation[fieldID]++
	if c.stale == StaleDiscard {
		delete(c.validating, fieldID)
	}

	c.reconcileLocked()

	section := c.def.Sections[c.current]
	autoSubmit := visibility.SubmitsOn(*field, cleaned) &&
		c.def.FieldSection(fieldID) == c.current &&
		visibility.FieldVisible(section, *field, c.answers) &&
		c.currentSectionValidLocked()
	if autoSubmit {
		c.pending.Add(1)
		go c.autoSubmit(context.WithoutCancel(ctx))
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

func (c *Controller) autoSubmit(ctx context.Context) {
	defer c.pending.Done()
	if _, err := c.Submit(ctx); err != nil {
		c.logger.Info("automatic submission did not complete", "session_id", c.sessionID, "err", err)
	}
}

// Blur marks a field as touched and, for unique fields holding a value, starts an
// asynchronous uniqueness check.
func (c *Controller) Blur(ctx context.Context, fieldID string) error {
	c.mu.Lock()
	field, ok := c.def.Field(fieldID)
	if !ok {
		c.mu.Unlock()
		return ErrUnknownField
	}
	c.touched[fieldID] = true

	value := c.answers[fieldID]
	if field.IsUnique && !domain.IsEmpty(value) && c.phase == domain.PhaseEditing {
		gen := c.generation[fieldID]
		c.validating[fieldID] = gen
		c.pending.Add(1)
		go c.runCheck(context.WithoutCancel(ctx), *field, value, gen)
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

func (c *Controller) runCheck(ctx context.Context, field domain.Field, value any, gen uint64) {
	defer c.pending.Done()

	start := time.Now()
	res, outcome := c.checker.Check(ctx, c.scope, field, value)
	elapsed := time.Since(start)

	c.mu.Lock()
	stale := gen != c.generation[field.ID]
	reported := string(outcome)

	if stale && c.stale == StaleDiscard {
		reported = "stale"
		c.logger.Debug("discarding stale uniqueness result", "session_id", c.sessionID, "field", field.ID)
	} else {
		if res.OK {
			delete(c.uniqueErrors, field.ID)
		} else {
			c.uniqueErrors[field.ID] = res.Message
		}
		delete(c.validating, field.ID)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.hooks.OnUniqueCheck != nil {
		c.hooks.OnUniqueCheck(ctx, &domain.UniqueCheckEvent{
			EventBase: c.event(domain.EventUniqueCheck),
			FieldID:   field.ID,
			Outcome:   reported,
			Duration:  elapsed,
		})
	}
	c.notify(snap)
}

// AttachFiles uploads blobs for a file field and records their descriptors.
// A failed upload is recorded as a field-level error and returned as *UploadError;
// other fields are unaffected.
func (c *Controller) AttachFiles(ctx context.Context, fieldID string, blobs ...domain.FileBlob) error {
	c.mu.Lock()
	if c.phase != domain.PhaseEditing {
		c.mu.Unlock()
		return ErrNotEditable
	}
	field, ok := c.def.Field(fieldID)
	if !ok {
		c.mu.Unlock()
		return ErrUnknownField
	}
	if field.Type != domain.FieldFile {
		c.mu.Unlock()
		return ErrNotAnswerable
	}
	c.touched[fieldID] = true
	c.mu.Unlock()

	folder := path.Join(c.scope.Collection(), fieldID)
	var uploaded []domain.UploadedFile
	var uploadErr error
	if c.uploader == nil {
		uploadErr = errors.New(msgNoUpload)
	}
	for _, blob := range blobs {
		if uploadErr != nil {
			break
		}
		file, err := c.uploader.Upload(ctx, blob, folder)
		if err != nil {
			uploadErr = err
			break
		}
		uploaded = append(uploaded, file)
	}

	c.mu.Lock()
	c.files[fieldID] = append(c.files[fieldID], uploaded...)
	if uploadErr != nil {
		c.uploadErrors[fieldID] = "Upload failed: " + uploadErr.Error()
	} else {
		delete(c.uploadErrors, fieldID)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	if uploadErr != nil {
		c.logger.Warn("upload failed", "session_id", c.sessionID, "field", fieldID, "err", uploadErr)
		return &UploadError{FieldID: fieldID, Err: uploadErr}
	}
	return nil
}

// RemoveFile forgets an uploaded file by URL. The stored blob is left in place.
func (c *Controller) RemoveFile(fieldID, url string) error {
	c.mu.Lock()
	if c.phase != domain.PhaseEditing {
		c.mu.Unlock()
		return ErrNotEditable
	}
	kept := c.files[fieldID][:0]
	for _, f := range c.files[fieldID] {
		if f.URL != url {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		delete(c.files, fieldID)
	} else {
		c.files[fieldID] = kept
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Advance moves to the next visible section, or submits when the current section
// is a submit step or no later section is visible.
// Running out of visible sections submits rather than leaving the cursor in place,
// so a jump past the end finishes the form.
// It returns the stored submission when advancing submitted the form.
func (c *Controller) Advance(ctx context.Context) (*domain.Submission, error) {
	c.mu.Lock()
	if c.phase != domain.PhaseEditing {
		c.mu.Unlock()
		return nil, ErrNotEditable
	}

	section := c.def.Sections[c.current]
	if !section.SkipValidation {
		for _, f := range visibility.VisibleFields(section, c.answers) {
			c.touched[f.ID] = true
		}
	}
	if blocked := c.gateLocked(true); blocked != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.emitBlocked(ctx, section, blocked)
		c.notify(snap)
		return nil, blocked
	}

	res := visibility.Resolve(c.def, c.answers)
	next, ok := res.Next(c.current)
	if section.IsSubmit() || !ok {
		c.mu.Unlock()
		return c.Submit(ctx)
	}

	c.current = next
	entered := c.def.Sections[next]
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.hooks.OnSectionEnter != nil {
		c.hooks.OnSectionEnter(ctx, &domain.SectionEvent{
			EventBase: c.event(domain.EventSectionEnter),
			SectionID: entered.ID,
			Index:     next,
		})
	}
	c.notify(snap)
	return nil, nil
}

// Retreat moves to the nearest previous visible section without validating.
func (c *Controller) Retreat(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != domain.PhaseEditing {
		c.mu.Unlock()
		return ErrNotEditable
	}
	res := visibility.Resolve(c.def, c.answers)
	prev, ok := res.Prev(c.current)
	if !ok {
		c.mu.Unlock()
		return ErrAtStart
	}
	c.current = prev
	entered := c.def.Sections[prev]
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.hooks.OnSectionEnter != nil {
		c.hooks.OnSectionEnter(ctx, &domain.SectionEvent{
			EventBase: c.event(domain.EventSectionEnter),
			SectionID: entered.ID,
			Index:     prev,
			Reason:    "retreat",
		})
	}
	c.notify(snap)
	return nil
}

// Submit runs the submission pipeline over the current answers.
// It is refused while uniqueness checks are pending or failing. Validation failures
// are returned as *validation.AggregateError and leave the session editable.
func (c *Controller) Submit(ctx context.Context) (*domain.Submission, error) {
	c.mu.Lock()
	if c.phase != domain.PhaseEditing {
		c.mu.Unlock()
		return nil, ErrNotEditable
	}
	if blocked := c.gateLocked(false); blocked != nil {
		section := c.def.Sections[c.current]
		c.mu.Unlock()
		c.emitBlocked(ctx, section, blocked)
		return nil, blocked
	}

	c.phase = domain.PhaseSubmitting
	req := submission.Request{
		Definition: c.def,
		Scope:      c.scope,
		Answers:    c.answers.Clone(),
		Files:      c.files.Clone(),
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	sub, err := c.pipeline.Submit(ctx, req)

	c.mu.Lock()
	if err != nil {
		c.phase = domain.PhaseEditing
		for _, fe := range validation.FieldErrors(err) {
			c.touched[fe.FieldID] = true
			if fe.Kind == validation.KindUnique {
				c.uniqueErrors[fe.FieldID] = fe.Message
			}
		}
	} else {
		c.phase = domain.PhaseSubmitted
		c.submissionID = sub.ID
		if c.scope.Kind == domain.ScopeForm && c.resetAfter > 0 {
			c.resetTimer = time.AfterFunc(c.resetAfter, c.reset)
		}
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()

	if c.hooks.OnSubmit != nil {
		evt := &domain.SubmitEvent{EventBase: c.event(domain.EventSubmit), Err: err}
		if err != nil {
			evt.Type = domain.EventSubmitFailure
			evt.Failures = len(validation.FieldErrors(err))
		} else {
			evt.SubmissionID = sub.ID
			evt.Status = sub.Status
		}
		c.hooks.OnSubmit(ctx, evt)
	}
	c.notify(snap)
	return sub, err
}

// reset clears a submitted generic form so the same session can answer again.
func (c *Controller) reset() {
	c.mu.Lock()
	if c.phase != domain.PhaseSubmitted {
		c.mu.Unlock()
		return
	}
	c.current = 0
	c.answers = make(domain.Answers)
	c.files = make(domain.UploadedFiles)
	c.touched = make(map[string]bool)
	c.validating = make(map[string]uint64)
	c.uniqueErrors = make(map[string]string)
	c.uploadErrors = make(map[string]string)
	for id := range c.generation {
		c.generation[id]++
	}
	c.phase = domain.PhaseEditing
	c.submissionID = ""
	c.resetTimer = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug("form reset after submission", "session_id", c.sessionID)
	c.notify(snap)
}

// Wait blocks until every uniqueness check and automatic submission started so far has finished.
func (c *Controller) Wait() {
	c.pending.Wait()
}

// Close stops the pending reset timer, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

// Snapshot returns the serialisable state of the session.
func (c *Controller) Snapshot() *domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// gateLocked applies the progression gate. Section validation is only part of it
// for Advance; Submit relies on the pipeline's full validation instead.
func (c *Controller) gateLocked(checkSection bool) *BlockedError {
	if checkSection && !c.currentSectionValidLocked() {
		return &BlockedError{Reason: ReasonInvalid, Message: msgInvalid}
	}
	if len(c.uniqueErrors) > 0 {
		return &BlockedError{Reason: ReasonDuplicate, Message: msgDuplicate}
	}
	if len(c.validating) > 0 {
		return &BlockedError{Reason: ReasonPending, Message: msgPending}
	}
	return nil
}

func (c *Controller) currentSectionValidLocked() bool {
	section := c.def.Sections[c.current]
	if section.SkipValidation {
		return true
	}
	fields := visibility.VisibleFields(section, c.answers)
	return validation.ValidateFields(fields, c.answers, c.files) == nil
}

// reconcileLocked keeps the cursor on a visible section after answers change.
func (c *Controller) reconcileLocked() {
	res := visibility.Resolve(c.def, c.answers)
	if res.Visible(c.current) {
		return
	}
	if prev, ok := res.Prev(c.current); ok {
		c.current = prev
		return
	}
	c.current = 0
}

func (c *Controller) snapshotLocked() *domain.Snapshot {
	snap := domain.NewSnapshot(c.sessionID, c.def.ID, c.scope)
	snap.CurrentSection = c.current
	snap.Answers = c.answers.Clone()
	snap.UploadedFiles = c.files.Clone()
	snap.Touched = sortedKeys(c.touched)
	snap.Validating = sortedKeys(c.validating)
	if len(c.uniqueErrors) > 0 {
		snap.UniqueErrors = make(map[string]string, len(c.uniqueErrors))
		for k, v := range c.uniqueErrors {
			snap.UniqueErrors[k] = v
		}
	}
	if len(c.uploadErrors) > 0 {
		snap.UploadErrors = make(map[string]string, len(c.uploadErrors))
		for k, v := range c.uploadErrors {
			snap.UploadErrors[k] = v
		}
	}
	snap.Phase = c.phase
	snap.SubmissionID = c.submissionID
	return snap
}

func (c *Controller) notify(snap *domain.Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}

func (c *Controller) emitBlocked(ctx context.Context, section domain.Section, blocked *BlockedError) {
	c.logger.Debug("advance blocked", "session_id", c.sessionID, "section", section.ID, "reason", blocked.Reason)
	if c.hooks.OnAdvanceBlock != nil {
		c.hooks.OnAdvanceBlock(ctx, &domain.SectionEvent{
			EventBase: c.event(domain.EventAdvanceBlock),
			SectionID: section.ID,
			Index:     c.def.SectionIndex(section.ID),
			Reason:    blocked.Reason,
		})
	}
}

func (c *Controller) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		SessionID: c.sessionID,
		FormID:    c.def.ID,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
