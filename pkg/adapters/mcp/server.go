package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/visibility"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"
)

const formsURI = "formflow://forms"

// Engine defines the stateless operations exposed as MCP tools.
type Engine interface {
	ListForms(ctx context.Context) ([]string, error)
	Form(ctx context.Context, formID string) (*domain.FormDefinition, error)
	Resolve(ctx context.Context, formID string, answers domain.Answers) (visibility.Result, error)
	ValidateField(ctx context.Context, formID string, scope domain.Scope, fieldID string, value any) (validation.Result, error)
	Submit(ctx context.Context, formID string, scope domain.Scope, answers domain.Answers, files domain.UploadedFiles) (*domain.Submission, error)
}

// SubmitResponse is the structured result of the submit tool.
type SubmitResponse struct {
	OK         bool                      `json:"ok" jsonschema_description:"True when the submission was stored"`
	Submission *domain.Submission        `json:"submission,omitempty" jsonschema_description:"The stored submission"`
	Errors     []*validation.FieldError `json:"errors,omitempty" jsonschema_description:"Field failures that blocked the submission"`
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("formflow-mcp", strings.TrimSpace(formflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type scopeArgs struct {
	Kind string `mapstructure:"scope_kind"`
	ID   string `mapstructure:"scope_id"`
}

func (a scopeArgs) domain() domain.Scope {
	kind := domain.ScopeForm
	if a.Kind == string(domain.ScopeActivity) {
		kind = domain.ScopeActivity
	}
	return domain.Scope{Kind: kind, ID: a.ID}
}

type formArgs struct {
	FormID string `mapstructure:"form_id"`
}

type resolveArgs struct {
	FormID  string         `mapstructure:"form_id"`
	Answers map[string]any `mapstructure:"answers"`
}

type validateArgs struct {
	Scope  scopeArgs `mapstructure:",squash"`
	FormID string    `mapstructure:"form_id"`
	Field  string    `mapstructure:"field"`
	Value  any       `mapstructure:"value"`
}

type submitArgs struct {
	Scope   scopeArgs      `mapstructure:",squash"`
	FormID  string         `mapstructure:"form_id"`
	Answers map[string]any `mapstructure:"answers"`
}

// decodeArgs maps loosely typed tool arguments onto dst. Answers may arrive as
// an object or as a JSON-encoded string.
func decodeArgs(args map[string]any, dst any) error {
	if raw, ok := args["answers"].(string); ok {
		var answers map[string]any
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			return fmt.Errorf("answers must be a JSON object: %w", err)
		}
		copied := make(map[string]any, len(args))
		for k, v := range args {
			copied[k] = v
		}
		copied["answers"] = answers
		args = copied
	}
	if err := mapstructure.Decode(args, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_forms",
		mcp.WithDescription("List the ids of every available form."),
	), s.handleListForms)

	s.mcpServer.AddTool(mcp.NewTool("get_form",
		mcp.WithDescription("Get the normalized definition of a form: sections, fields, options and rules."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form id")),
	), s.handleGetForm)

	s.mcpServer.AddTool(mcp.NewTool("resolve_visibility",
		mcp.WithDescription("Compute which sections of a form are visible for a set of answers."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form id")),
		mcp.WithObject("answers", mcp.Description("Answers keyed by field id")),
		mcp.WithOutputSchema[visibility.Result](),
	), mcp.NewStructuredToolHandler(s.handleResolve))

	s.mcpServer.AddTool(mcp.NewTool("validate_field",
		mcp.WithDescription("Validate one answer, including the uniqueness check for unique fields."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form id")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field id")),
		mcp.WithString("value", mcp.Description("Answer to validate")),
		mcp.WithString("scope_kind", mcp.Description("form or activity"), mcp.Enum("form", "activity")),
		mcp.WithString("scope_id", mcp.Description("Form or activity id; defaults to the form id")),
		mcp.WithOutputSchema[validation.Result](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("submit",
		mcp.WithDescription("Validate and store a complete set of answers."),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form id")),
		mcp.WithObject("answers", mcp.Required(), mcp.Description("Answers keyed by field id")),
		mcp.WithString("scope_kind", mcp.Description("form or activity"), mcp.Enum("form", "activity")),
		mcp.WithString("scope_id", mcp.Description("Form or activity id; defaults to the form id")),
		mcp.WithOutputSchema[SubmitResponse](),
	), mcp.NewStructuredToolHandler(s.handleSubmit))
}

func (s *Server) handleListForms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.engine.ListForms(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(ids)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args formArgs
	if err := decodeArgs(request.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def, err := s.engine.Form(ctx, args.FormID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	jsonBytes, _ := json.Marshal(def)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleResolve(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (visibility.Result, error) {
	var args resolveArgs
	if err := decodeArgs(raw, &args); err != nil {
		return visibility.Result{}, err
	}
	return s.engine.Resolve(ctx, args.FormID, domain.Answers(args.Answers))
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (validation.Result, error) {
	var args validateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return validation.Result{}, err
	}
	return s.engine.ValidateField(ctx, args.FormID, args.Scope.domain(), args.Field, args.Value)
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (SubmitResponse, error) {
	var args submitArgs
	if err := decodeArgs(raw, &args); err != nil {
		return SubmitResponse{}, err
	}
	sub, err := s.engine.Submit(ctx, args.FormID, args.Scope.domain(), domain.Answers(args.Answers), nil)
	if fields := validation.FieldErrors(err); fields != nil {
		return SubmitResponse{Errors: fields}, nil
	}
	if err != nil {
		s.logger.Warn("MCP submit failed", "form_id", args.FormID, "err", err)
		return SubmitResponse{}, fmt.Errorf("submit failed: %w", err)
	}
	return SubmitResponse{OK: true, Submission: sub}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(formsURI, "Available forms",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.engine.ListForms(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list forms: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      formsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
