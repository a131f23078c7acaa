package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/formflow/internal/presentation/graph"
	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/dsl"
	"github.com/stretchr/testify/assert"
)

func workshop() *domain.FormDefinition {
	b := dsl.New("workshop").Title("Workshop")
	about := b.Section("about").Title("About you")
	about.Text("name", "Name").Required()
	about.Radio("laptop", "Bringing a laptop?", "Yes", "No").Jump("No", "payment")
	about.Radio("attending", "Attending?", "Yes", "No").SubmitOn("No")
	b.Section("setup").Title(`The "setup"`).Select("os", "OS", "Linux", "Mac")
	b.Section("staff-only").ShowIf("laptop", domain.ConditionNotEquals, "Yes").Text("badge", "Badge")
	b.Section("payment").SubmitStep().Text("upi", "UPI transaction id")
	return b.MustBuild()
}

func TestGenerateMermaid(t *testing.T) {
	got := graph.GenerateMermaid(workshop(), nil)

	tests := []struct {
		name     string
		contains []string
	}{
		{
			name:     "First Section Shape",
			contains: []string{`about(("about <br/> About you"))`},
		},
		{
			name:     "Submit Step Shape",
			contains: []string{`payment[["payment"]]`},
		},
		{
			name:     "Conditional Section Shape",
			contains: []string{`staff_only{{"staff-only <br/> if laptop != Yes"}}`},
		},
		{
			name:     "Title Escaping",
			contains: []string{`setup["setup <br/> The 'setup'"]`},
		},
		{
			name: "Default Order",
			contains: []string{
				"about --> setup",
				"setup --> staff_only",
				"staff_only --> payment",
			},
		},
		{
			name: "Option Jumps",
			contains: []string{
				`about -- "laptop = No" --> payment`,
				`about -. "attending = No" .-> __submit__`,
			},
		},
		{
			name:     "Terminal Edges",
			contains: []string{"payment -.-> __submit__", `__submit__((("Submit")))`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
		})
	}
	assert.NotContains(t, got, "Overlay Styles")
}

func TestGenerateMermaid_Deterministic(t *testing.T) {
	def := workshop()
	assert.Equal(t, graph.GenerateMermaid(def, nil), graph.GenerateMermaid(def, nil))
	assert.Equal(t, "graph TD\n", graph.GenerateMermaid(nil, nil))
}

func TestOverlayFromSnapshot(t *testing.T) {
	def := workshop()

	snap := domain.NewSnapshot("s1", def.ID, domain.Scope{Kind: domain.ScopeForm, ID: def.ID})
	snap.Answers = domain.Answers{"laptop": "No"}
	snap.CurrentSection = def.SectionIndex("payment")

	overlay := graph.OverlayFromSnapshot(def, snap)
	assert.Equal(t, []string{"about"}, overlay.VisitedSections)
	assert.Equal(t, "payment", overlay.CurrentSection)

	got := graph.GenerateMermaid(def, overlay)
	assert.Contains(t, got, "class about visited;")
	assert.Contains(t, got, "class payment current;")
	assert.NotContains(t, got, "class setup visited;")

	snap.Phase = domain.PhaseSubmitted
	overlay = graph.OverlayFromSnapshot(def, snap)
	assert.Equal(t, []string{"about", "payment"}, overlay.VisitedSections)
	assert.Equal(t, graph.SubmitNode, overlay.CurrentSection)

	assert.Nil(t, graph.OverlayFromSnapshot(def, nil))
}
