package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/wizard"
	"github.com/oapi-codegen/runtime"
)

type scopeBody struct {
	Kind domain.ScopeKind `json:"kind"`
	ID   string           `json:"id"`
}

// domain maps the request scope. An empty kind means a generic form; an empty
// id is filled in by the engine.
func (s *scopeBody) domain() domain.Scope {
	if s == nil {
		return domain.Scope{Kind: domain.ScopeForm}
	}
	kind := s.Kind
	if kind == "" {
		kind = domain.ScopeForm
	}
	return domain.Scope{Kind: kind, ID: s.ID}
}

type answersRequest struct {
	Scope   *scopeBody     `json:"scope,omitempty"`
	Answers domain.Answers `json:"answers"`
}

type answerRequest struct {
	Value any `json:"value"`
}

type validateRequest struct {
	Scope *scopeBody `json:"scope,omitempty"`
	Field string     `json:"field"`
	Value any        `json:"value"`
}

type startRequest struct {
	FormID string     `json:"form_id"`
	Scope  *scopeBody `json:"scope,omitempty"`
}

// SessionView is the response body of every session endpoint.
type SessionView struct {
	Snapshot         *domain.Snapshot  `json:"snapshot"`
	VisibleSections  []string          `json:"visible_sections"`
	CurrentSectionID string            `json:"current_section_id"`
	VisibleFields    []string          `json:"visible_fields"`
	Errors           map[string]string `json:"errors"`
}

func newSessionView(c *wizard.Controller) SessionView {
	_, section := c.Current()
	fields := c.VisibleFields()
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, f.ID)
	}
	sections := c.Visible().Sections
	if sections == nil {
		sections = []string{}
	}
	return SessionView{
		Snapshot:         c.Snapshot(),
		VisibleSections:  sections,
		CurrentSectionID: section.ID,
		VisibleFields:    ids,
		Errors:           c.Errors(),
	}
}

// readBlobs collects the "files" parts of a parsed multipart form.
func readBlobs(r *http.Request) ([]domain.FileBlob, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		return nil, fmt.Errorf("no files in request")
	}
	var blobs []domain.FileBlob
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		blobs = append(blobs, domain.FileBlob{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return blobs, nil
}

// bindQuery binds a form-style query parameter.
func bindQuery(r *http.Request, name string, required bool, dest any) error {
	return runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest)
}
