package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/visibility"
	"github.com/aretw0/formflow/pkg/wizard"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var rawSpec []byte

// Engine defines the operations the HTTP surface needs from the form engine.
// *formflow.Engine implements it.
type Engine interface {
	ListForms(ctx context.Context) ([]string, error)
	Form(ctx context.Context, formID string) (*domain.FormDefinition, error)
	Resolve(ctx context.Context, formID string, answers domain.Answers) (visibility.Result, error)
	ValidateField(ctx context.Context, formID string, scope domain.Scope, fieldID string, value any) (validation.Result, error)
	Submit(ctx context.Context, formID string, scope domain.Scope, answers domain.Answers, files domain.UploadedFiles) (*domain.Submission, error)
	Start(ctx context.Context, formID string, scope domain.Scope) (*domain.Snapshot, error)
	Do(ctx context.Context, sessionID string, fn func(context.Context, *wizard.Controller) error) (*domain.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
	OnChange(fn formflow.ChangeListener)
}

var _ Engine = (*formflow.Engine)(nil)

// Server holds the HTTP handlers.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
	spec     *openapi3.T
	maxBody  int64
	maxJSON  int64
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMaxUploadSize limits multipart bodies on the files endpoint.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

// WithMaxJSONSize limits JSON request bodies.
func WithMaxJSONSize(n int64) Option {
	return func(s *Server) {
		s.maxJSON = n
	}
}

// LoadSpec parses the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		maxBody: 32 << 20,
		maxJSON: 1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.Streams.logger = s.logger

	if doc, err := LoadSpec(context.Background()); err != nil {
		s.logger.Error("openapi spec unavailable", "err", err)
	} else {
		s.spec = doc
	}

	engine.OnChange(func(sessionID string, diff *domain.SnapshotDiff) {
		bytes, err := json.Marshal(diff)
		if err != nil {
			s.logger.Error("failed to encode diff", "session_id", sessionID, "err", err)
			return
		}
		s.Streams.Broadcast(sessionID, string(bytes))
	})

	return enableCORS(s.Routes())
}

// Routes builds the chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/forms", func(r chi.Router) {
		r.Get("/", s.ListForms)
		r.Route("/{formID}", func(r chi.Router) {
			r.Get("/", s.GetForm)
			r.Post("/resolve", s.ResolveVisibility)
			r.Post("/validate", s.ValidateField)
			r.Post("/submissions", s.SubmitForm)
		})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.StartSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Put("/answers/{fieldID}", s.SetAnswer)
			r.Post("/blur/{fieldID}", s.BlurField)
			r.Post("/files/{fieldID}", s.AttachFiles)
			r.Delete("/files/{fieldID}", s.RemoveFile)
			r.Post("/advance", s.Advance)
			r.Post("/retreat", s.Retreat)
			r.Post("/submit", s.SubmitSession)
		})
	})

	r.Get("/events", s.SubscribeEvents)
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec != nil && s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "formflow-http",
		"version":     strings.TrimSpace(formflow.Version),
		"api_version": apiVersion,
	})
}

// ListForms handles GET /forms.
func (s *Server) ListForms(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.ListForms(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetForm handles GET /forms/{formID}.
func (s *Server) GetForm(w http.ResponseWriter, r *http.Request) {
	def, err := s.Engine.Form(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, def)
}

// ResolveVisibility handles POST /forms/{formID}/resolve.
func (s *Server) ResolveVisibility(w http.ResponseWriter, r *http.Request) {
	var body answersRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.Engine.Resolve(r.Context(), chi.URLParam(r, "formID"), body.Answers)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Sections == nil {
		res.Sections = []string{}
		res.Indexes = []int{}
	}
	s.writeJSON(w, http.StatusOK, res)
}

// ValidateField handles POST /forms/{formID}/validate.
func (s *Server) ValidateField(w http.ResponseWriter, r *http.Request) {
	var body validateRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Field == "" {
		s.writeProblem(w, http.StatusBadRequest, errorBody{Error: "field is required"})
		return
	}
	res, err := s.Engine.ValidateField(r.Context(), chi.URLParam(r, "formID"), body.Scope.domain(), body.Field, body.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// SubmitForm handles POST /forms/{formID}/submissions.
func (s *Server) SubmitForm(w http.ResponseWriter, r *http.Request) {
	var body answersRequest
	if !s.decode(w, r, &body) {
		return
	}
	sub, err := s.Engine.Submit(r.Context(), chi.URLParam(r, "formID"), body.Scope.domain(), body.Answers, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sub)
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.FormID == "" {
		s.writeProblem(w, http.StatusBadRequest, errorBody{Error: "form_id is required"})
		return
	}
	snap, err := s.Engine.Start(r.Context(), body.FormID, body.Scope.domain())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondSession(w, r, snap.SessionID, http.StatusCreated, nil)
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, chi.URLParam(r, "sessionID"), http.StatusOK, nil)
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAnswer handles PUT /sessions/{sessionID}/answers/{fieldID}.
func (s *Server) SetAnswer(w http.ResponseWriter, r *http.Request) {
	var body answerRequest
	if !s.decode(w, r, &body) {
		return
	}
	fieldID := chi.URLParam(r, "fieldID")
	s.respondSession(w, r, chi.URLParam(r, "sessionID"), http.StatusOK, func(ctx context.Context, c *wizard.Controller) error {
		return c.SetAnswer(ctx, fieldID, body.Value)
	})
}

// BlurField handles POST /sessions/{sessionID}/blur/{fieldID}.
func (s *Server) BlurField(w http.ResponseWriter, r *http.Request) {
	fieldID := chi.URLParam(r, "fieldID")
	s.respondSession(w, r, chi.URLParam(r, "sessionID"), http.StatusOK, func(ctx context.Context, c *wizard.Controller) error {
		return c.Blur(ctx, fieldID)
	})
}

// AttachFiles handles POST /sessions/{sessionID}/files/{fieldID}.
func (s *Server) AttachFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(s.maxBody); err != nil {
		s.writeProblem(w, http.StatusBadRequest, errorBody{Error: "invalid multipart body"})
		s.logger.Warn("AttachFiles: invalid body", "err", err)
		return
	}
	blobs, err := readBlobs(r)
	if err != nil {
		s.writeProblem(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	fieldID := chi.URLParam(r, "fieldID")
	s.respondSession(w, r, chi.URLParam(r, "sessionID"), http.StatusOK, func(ctx context.Context, c *wizard.Controller) error {
		return c.AttachFiles(ctx, fieldID, blobs...)
	})
}

// RemoveFile handles DELETE /sessions/{sessionID}/files/{fieldID}?url=.
func (s *Server) RemoveFile(w http.ResponseWriter, r *http.Request) {
	var url string
	if err := bindQuery(r, "url", true, &url); err != nil {
		s.writeProblem(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	fieldID := chi.URLParam(r, "fieldID")
	s.respondSession(w, r, chi.URLParam(r, "sessionID"), http.StatusOK, func(ctx context.Context, c *wizard.Controller) error {
		return c.RemoveFile(fieldID, url)
	})
}

// Advance handles POST /sessions/{sessionID}/advance.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, chi.URLParam(r, "sessionID"), http.StatusOK, func(ctx context.Context, c *wizard.Controller) error {
		_, err := c.Advance(ctx)
		return err
	})
}

// Retreat handles POST /sessions/{sessionID}/retreat.
func (s *Server) Retreat(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, chi.URLParam(r, "sessionID"), http.StatusOK, func(ctx context.Context, c *wizard.Controller) error {
		return c.Retreat(ctx)
	})
}

// SubmitSession handles POST /sessions/{sessionID}/submit.
func (s *Server) SubmitSession(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, chi.URLParam(r, "sessionID"), http.StatusOK, func(ctx context.Context, c *wizard.Controller) error {
		_, err := c.Submit(ctx)
		return err
	})
}

// respondSession runs op under the session lock and writes the resulting view.
// A nil op only reads.
func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, sessionID string, status int, op func(context.Context, *wizard.Controller) error) {
	var view SessionView
	_, err := s.Engine.Do(r.Context(), sessionID, func(ctx context.Context, c *wizard.Controller) error {
		var opErr error
		if op != nil {
			opErr = op(ctx, c)
		}
		view = newSessionView(c)
		return opErr
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, status, view)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxJSON)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if tooLarge := (*http.MaxBytesError)(nil); errors.As(err, &tooLarge) {
			s.writeProblem(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			s.logger.Warn("request body too large", "path", r.URL.Path, "limit", tooLarge.Limit)
			return false
		}
		s.writeProblem(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
