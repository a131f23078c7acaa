package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/sanitize"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/wizard"
)

// Commands recognised at any prompt.
const (
	CommandBack = ":back"
	CommandQuit = ":quit"
)

var (
	errBack = errors.New("back")
	errQuit = errors.New("quit")
)

// Filler drives a wizard session from line-oriented input.
type Filler struct {
	Engine *formflow.Engine
	In     io.Reader
	Out    io.Writer
	// Render turns Markdown descriptions into terminal output. Nil prints them raw.
	Render func(string) (string, error)
	Logger *slog.Logger

	lines *bufio.Scanner
}

// Fill asks every visible field of formID until the form is submitted, the
// respondent quits or input ends. A non-empty sessionID resumes that session.
// The returned snapshot is the last persisted state.
func (f *Filler) Fill(ctx context.Context, formID string, scope domain.Scope, sessionID string) (*domain.Snapshot, error) {
	if f.Logger == nil {
		f.Logger = logging.NewNop()
	}
	f.lines = bufio.NewScanner(f.In)

	snap, err := f.open(ctx, formID, scope, sessionID)
	if err != nil {
		return nil, err
	}
	id := snap.SessionID
	printSystemMessage(f.Out, "Session '%s' active. Type %s to go back, %s to stop.", id, CommandBack, CommandQuit)

	var ask map[string]bool
	for {
		if snap.Phase == domain.PhaseSubmitted {
			printSystemMessage(f.Out, "Submitted as '%s'.", snap.SubmissionID)
			return snap, nil
		}

		err := f.section(ctx, id, ask)
		switch {
		case errors.Is(err, errQuit):
			printSystemMessage(f.Out, "Saved. Resume with --session %s.", id)
			return f.Engine.Session(ctx, id)
		case errors.Is(err, errBack):
			ask = nil
			snap, err = f.Engine.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
				return c.Retreat(ctx)
			})
			if errors.Is(err, wizard.ErrAtStart) {
				fmt.Fprintln(f.Out, "  Already at the first section.")
			} else if err != nil {
				return snap, err
			}
			continue
		case err != nil:
			return f.last(ctx, id, snap), err
		}

		snap, ask, err = f.advance(ctx, id)
		if err != nil {
			return snap, err
		}
	}
}

func (f *Filler) open(ctx context.Context, formID string, scope domain.Scope, sessionID string) (*domain.Snapshot, error) {
	if sessionID != "" {
		snap, err := f.Engine.Session(ctx, sessionID)
		if err == nil {
			printSystemMessage(f.Out, "Resuming '%s'...", snap.FormID)
			return snap, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		f.Logger.Debug("session not found, starting a new one", "session_id", sessionID)
	}
	return f.Engine.Start(ctx, formID, scope)
}

func (f *Filler) last(ctx context.Context, id string, fallback *domain.Snapshot) *domain.Snapshot {
	if snap, err := f.Engine.Session(ctx, id); err == nil {
		return snap
	}
	return fallback
}

// section asks the visible fields of the current section. When only is non-nil
// just those fields are asked again.
func (f *Filler) section(ctx context.Context, id string, only map[string]bool) error {
	asked := make(map[string]bool)
	header := true
	for {
		var (
			field   *domain.Field
			current any
			editing bool
		)
		_, err := f.Engine.Do(ctx, id, func(_ context.Context, c *wizard.Controller) error {
			editing = c.Phase() == domain.PhaseEditing
			if header {
				f.printHeader(c)
				header = false
			}
			snap := c.Snapshot()
			for _, fl := range c.VisibleFields() {
				if asked[fl.ID] || (only != nil && !only[fl.ID]) {
					continue
				}
				fl := fl
				field = &fl
				current = snap.Answers[fl.ID]
				if fl.Type == domain.FieldFile && len(snap.UploadedFiles[fl.ID]) > 0 {
					current = fileNames(snap.UploadedFiles[fl.ID])
				}
				break
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !editing || field == nil {
			return nil
		}
		asked[field.ID] = true

		if !field.CollectsAnswer() {
			fmt.Fprintf(f.Out, "  %s\n", field.Label)
			continue
		}
		if err := f.ask(ctx, id, *field, current); err != nil {
			return err
		}
	}
}

func (f *Filler) printHeader(c *wizard.Controller) {
	idx, section := c.Current()
	visible := c.Visible()
	step := 1
	for k, i := range visible.Indexes {
		if i == idx {
			step = k + 1
		}
	}
	fmt.Fprintf(f.Out, "\n== %s (%d/%d) ==\n", section.Title, step, len(visible.Indexes))
	if section.Description == "" {
		return
	}
	desc := section.Description
	if f.Render != nil {
		if out, err := f.Render(desc); err == nil {
			desc = out
		} else {
			f.Logger.Debug("markdown render failed", "err", err)
		}
	}
	fmt.Fprintln(f.Out, strings.TrimRight(desc, "\n"))
}

// ask prompts for one field until its answer passes validation.
func (f *Filler) ask(ctx context.Context, id string, field domain.Field, current any) error {
	for {
		fmt.Fprint(f.Out, prompt(field, current))
		line, err := f.readLine()
		if err != nil {
			return err
		}
		switch line {
		case CommandBack:
			return errBack
		case CommandQuit:
			return errQuit
		case "":
			if current != nil {
				return nil
			}
		}

		var message string
		_, err = f.Engine.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
			if err := f.apply(ctx, c, field, line); err != nil {
				return err
			}
			c.Wait()
			message = c.Errors()[field.ID]
			return nil
		})
		switch {
		case err == nil && message == "":
			return nil
		case err == nil:
			fmt.Fprintf(f.Out, "  ! %s\n", message)
		case errors.Is(err, wizard.ErrNotEditable):
			return nil
		case isFixable(err):
			fmt.Fprintf(f.Out, "  ! %v\n", err)
		default:
			return err
		}
		current = nil
	}
}

func (f *Filler) apply(ctx context.Context, c *wizard.Controller, field domain.Field, line string) error {
	if field.Type == domain.FieldFile {
		if line == "" {
			return nil
		}
		blobs, err := readFiles(line)
		if err != nil {
			return err
		}
		return c.AttachFiles(ctx, field.ID, blobs...)
	}

	value, err := parseAnswer(field, line)
	if err != nil {
		return err
	}
	if err := c.SetAnswer(ctx, field.ID, value); err != nil {
		return err
	}
	return c.Blur(ctx, field.ID)
}

// advance moves on after a section was answered. It returns the fields to ask
// again when the gate refused to continue.
func (f *Filler) advance(ctx context.Context, id string) (*domain.Snapshot, map[string]bool, error) {
	var (
		sub    *domain.Submission
		errMap map[string]string
	)
	snap, err := f.Engine.Do(ctx, id, func(ctx context.Context, c *wizard.Controller) error {
		c.Wait()
		if c.Phase() != domain.PhaseEditing {
			return nil
		}
		s, err := c.Advance(ctx)
		sub = s
		errMap = c.Errors()
		return err
	})

	var blocked *wizard.BlockedError
	switch {
	case err == nil:
		if sub != nil {
			fmt.Fprintf(f.Out, "  Status: %s\n", sub.Status)
		}
		return snap, nil, nil
	case errors.As(err, &blocked):
		fmt.Fprintf(f.Out, "  ! %s\n", blocked.Message)
	case validation.FieldErrors(err) != nil:
		fmt.Fprintln(f.Out, "  ! The form could not be submitted:")
		for _, fe := range validation.FieldErrors(err) {
			fmt.Fprintf(f.Out, "    - %s: %s\n", fe.Label, fe.Message)
		}
	default:
		return snap, nil, err
	}

	if len(errMap) == 0 {
		return snap, nil, nil
	}
	only := make(map[string]bool, len(errMap))
	for fieldID, msg := range errMap {
		only[fieldID] = true
		f.Logger.Debug("field blocked", "field", fieldID, "message", msg)
	}
	return snap, only, nil
}

func (f *Filler) readLine() (string, error) {
	if !f.lines.Scan() {
		if err := f.lines.Err(); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return "", fmt.Errorf("read answer: %w", io.EOF)
	}
	return strings.TrimSpace(f.lines.Text()), nil
}

func prompt(field domain.Field, current any) string {
	var sb strings.Builder
	sb.WriteString(field.Label)
	if field.Required {
		sb.WriteString(" *")
	}
	if field.Type.IsChoice() {
		sb.WriteString("\n")
		for i, o := range field.Options {
			fmt.Fprintf(&sb, "    %d) %s\n", i+1, o.Label)
		}
		if field.Type == domain.FieldCheckbox {
			sb.WriteString("  (comma separated)")
		}
	}
	if field.Type == domain.FieldFile {
		sb.WriteString(" (file paths, comma separated)")
	}
	if current != nil {
		fmt.Fprintf(&sb, " [%s]", display(current))
	}
	sb.WriteString("\n> ")
	return sb.String()
}

// parseAnswer maps typed input to the stored answer. Choices accept the option
// number or its label.
func parseAnswer(field domain.Field, line string) (any, error) {
	switch field.Type {
	case domain.FieldSelect, domain.FieldRadio:
		if line == "" {
			return "", nil
		}
		return choose(field, line)
	case domain.FieldCheckbox:
		var picked []string
		for _, part := range strings.Split(line, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			label, err := choose(field, part)
			if err != nil {
				return nil, err
			}
			picked = append(picked, label)
		}
		return picked, nil
	}
	return line, nil
}

func choose(field domain.Field, input string) (string, error) {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(field.Options) {
		return field.Options[n-1].Label, nil
	}
	for _, o := range field.Options {
		if strings.EqualFold(o.Label, input) {
			return o.Label, nil
		}
	}
	return "", &choiceError{input: input}
}

type choiceError struct{ input string }

func (e *choiceError) Error() string {
	return fmt.Sprintf("%q is not one of the options", e.input)
}

func readFiles(line string) ([]domain.FileBlob, error) {
	var blobs []domain.FileBlob
	for _, path := range strings.Split(line, ",") {
		if path = strings.TrimSpace(path); path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &fileError{err: err}
		}
		blobs = append(blobs, domain.FileBlob{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		})
	}
	return blobs, nil
}

type fileError struct{ err error }

func (e *fileError) Error() string { return e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

// isFixable reports whether the respondent can retry with different input.
func isFixable(err error) bool {
	var (
		choice *choiceError
		file   *fileError
		upload *wizard.UploadError
	)
	return errors.As(err, &choice) ||
		errors.As(err, &file) ||
		errors.As(err, &upload) ||
		errors.Is(err, wizard.ErrNotAnswerable) ||
		errors.Is(err, sanitize.ErrInputTooLarge) ||
		errors.Is(err, sanitize.ErrInvalidUTF8)
}

func display(v any) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

func fileNames(files []domain.UploadedFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.OriginalName
	}
	return names
}
