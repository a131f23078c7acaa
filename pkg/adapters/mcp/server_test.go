package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/formflow"
	"github.com/aretw0/formflow/pkg/adapters/memory"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/dsl"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *memory.Submissions) {
	t.Helper()
	b := dsl.New("feedback").Title("Feedback")
	sec := b.Section("main")
	sec.Email("email", "Email").Required().Unique()
	sec.Radio("rating", "How was it?", "Good", "Bad").Required().Jump("Bad", "why")
	b.Section("why").Textarea("reason", "What went wrong?").Required().
		Section().ShowIf("rating", domain.ConditionEquals, "Bad")

	defs, err := b.Store()
	require.NoError(t, err)

	subs := memory.NewSubmissions()
	eng, err := formflow.New(defs, formflow.WithSubmissionStore(subs))
	require.NoError(t, err)
	return NewServer(eng, nil), subs
}

func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	s, _ := newTestServer(t)
	require.NotNil(t, s.mcpServer)

	tools := s.mcpServer.ListTools()
	for _, name := range []string{"list_forms", "get_form", "resolve_visibility", "validate_field", "submit"} {
		assert.Contains(t, tools, name)
	}
}

func TestListAndGetForm(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleListForms(ctx, newCallToolRequest("list_forms", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `["feedback"]`, textOf(t, res))

	res, err = s.handleGetForm(ctx, newCallToolRequest("get_form", map[string]any{"form_id": "feedback"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var def map[string]any
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &def))
	assert.Equal(t, "Feedback", def["title"])

	res, err = s.handleGetForm(ctx, newCallToolRequest("get_form", map[string]any{"form_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestResolve(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
		want []string
	}{
		{
			name: "object answers",
			args: map[string]any{"form_id": "feedback", "answers": map[string]any{"rating": "Bad"}},
			want: []string{"main", "why"},
		},
		{
			name: "json string answers",
			args: map[string]any{"form_id": "feedback", "answers": `{"rating":"Good"}`},
			want: []string{"main"},
		},
		{
			name: "no answers",
			args: map[string]any{"form_id": "feedback"},
			want: []string{"main"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleResolve(ctx, newCallToolRequest("resolve_visibility", tt.args), tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Sections)
		})
	}

	_, err := s.handleResolve(ctx, mcp.CallToolRequest{}, map[string]any{"form_id": "feedback", "answers": "{broken"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	args := map[string]any{"form_id": "feedback", "field": "email", "value": "x"}
	res, err := s.handleValidate(ctx, newCallToolRequest("validate_field", args), args)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, validation.KindFormat, res.Kind)

	args = map[string]any{"form_id": "feedback", "field": "email", "value": "ada@example.com", "scope_kind": "activity", "scope_id": "talk-1"}
	res, err = s.handleValidate(ctx, newCallToolRequest("validate_field", args), args)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestSubmit(t *testing.T) {
	s, subs := newTestServer(t)
	ctx := context.Background()

	args := map[string]any{
		"form_id":    "feedback",
		"scope_kind": "activity",
		"scope_id":   "talk-1",
		"answers":    map[string]any{"email": "ada@example.com", "rating": "Good"},
	}
	res, err := s.handleSubmit(ctx, newCallToolRequest("submit", args), args)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, "feedback", res.Submission.FormID)
	assert.Len(t, subs.All("activities/talk-1/registrations"), 1)

	// Duplicate email in the same activity.
	res, err = s.handleSubmit(ctx, newCallToolRequest("submit", args), args)
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, validation.KindUnique, res.Errors[0].Kind)

	bad := map[string]any{"form_id": "feedback", "answers": map[string]any{"rating": "Bad"}}
	res, err = s.handleSubmit(ctx, newCallToolRequest("submit", bad), bad)
	require.NoError(t, err)
	assert.Len(t, res.Errors, 2, "email and reason are missing")
}
