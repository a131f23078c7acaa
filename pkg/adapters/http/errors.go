package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/sanitize"
	"github.com/aretw0/formflow/pkg/submission"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/wizard"
)

type errorBody struct {
	Error  string                    `json:"error"`
	Reason string                    `json:"reason,omitempty"`
	Errors []*validation.FieldError `json:"errors,omitempty"`
}

// writeError maps engine errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		blocked *wizard.BlockedError
		upload  *wizard.UploadError
		persist *submission.PersistenceError
		defErr  *domain.DefinitionError
	)

	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	switch {
	case errors.Is(err, domain.ErrFormNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, wizard.ErrUnknownField):
		status = http.StatusNotFound
	case errors.Is(err, wizard.ErrNotAnswerable),
		errors.Is(err, sanitize.ErrInputTooLarge),
		errors.Is(err, sanitize.ErrInvalidUTF8):
		status = http.StatusBadRequest
	case errors.Is(err, wizard.ErrNotEditable), errors.Is(err, wizard.ErrAtStart):
		status = http.StatusConflict
	case errors.As(err, &blocked):
		status = http.StatusConflict
		body = errorBody{Error: blocked.Message, Reason: blocked.Reason}
	case validation.FieldErrors(err) != nil:
		status = http.StatusUnprocessableEntity
		body.Errors = validation.FieldErrors(err)
	case errors.As(err, &defErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &upload):
		status = http.StatusBadGateway
	case errors.As(err, &persist):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeProblem(w, status, body)
}

func (s *Server) writeProblem(w http.ResponseWriter, status int, body errorBody) {
	s.writeJSON(w, status, body)
}
