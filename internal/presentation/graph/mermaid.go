package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/visibility"
)

// SubmitNode is the id of the terminal node every path ends in.
const SubmitNode = domain.SubmitTarget

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedSections []string
	CurrentSection  string
}

// OverlayFromSnapshot marks the visible sections before the cursor as visited.
func OverlayFromSnapshot(def *domain.FormDefinition, snap *domain.Snapshot) *GraphOverlay {
	def = def.Normalized()
	if def == nil || snap == nil || snap.CurrentSection >= len(def.Sections) {
		return nil
	}
	overlay := &GraphOverlay{CurrentSection: def.Sections[snap.CurrentSection].ID}
	res := visibility.Resolve(def, snap.Answers)
	for k, idx := range res.Indexes {
		if idx < snap.CurrentSection {
			overlay.VisitedSections = append(overlay.VisitedSections, res.Sections[k])
		}
	}
	if snap.Phase == domain.PhaseSubmitted {
		overlay.VisitedSections = append(overlay.VisitedSections, overlay.CurrentSection)
		overlay.CurrentSection = SubmitNode
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart of the section graph of a form.
// Shapes:
// - First section: ((Circle))
// - Submit step: [[Subroutine]]
// - Section with a visibility rule: {{Hexagon}}
// - Default: [Rectangle]
// Solid arrows are the default order, labelled arrows are option jumps and dotted
// arrows lead to the submit node.
func GenerateMermaid(def *domain.FormDefinition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	def = def.Normalized()
	if def == nil {
		return sb.String()
	}

	for i, s := range def.Sections {
		safeID := sanitizeMermaidID(s.ID)
		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case s.IsSubmit():
			opener, closer = "[[", "]]"
		case s.Conditional.Active():
			opener, closer = "{{", "}}"
		}

		label := s.ID
		if s.Title != "" && s.Title != s.ID {
			label = fmt.Sprintf("%s <br/> %s", s.ID, escape(s.Title))
		}
		if s.Conditional.Active() {
			label = fmt.Sprintf("%s <br/> if %s", label, ruleLabel(s.Conditional))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)
	}
	fmt.Fprintf(&sb, "    %s(((\"Submit\")))\n", SubmitNode)

	for i, s := range def.Sections {
		safeID := sanitizeMermaidID(s.ID)

		for _, f := range s.Fields {
			values := make([]string, 0, len(f.ConditionalMapping))
			for v := range f.ConditionalMapping {
				values = append(values, v)
			}
			sort.Strings(values)
			for _, v := range values {
				targets := f.ConditionalMapping[v]
				cond := escape(fmt.Sprintf("%s = %s", f.ID, v))
				if targets.Submits() {
					fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", safeID, cond, SubmitNode)
					continue
				}
				if to, ok := targets.Jump(); ok {
					fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, cond, sanitizeMermaidID(to))
				}
			}
		}

		switch {
		case s.IsSubmit() || i == len(def.Sections)-1:
			fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, SubmitNode)
		default:
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(def.Sections[i+1].ID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedSections {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentSection != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentSection))
		}
	}

	return sb.String()
}

func ruleLabel(r *domain.VisibilityRule) string {
	op := "="
	switch r.Condition {
	case domain.ConditionNotEquals:
		op = "!="
	case domain.ConditionContains:
		op = "contains"
	}
	return escape(fmt.Sprintf("%s %s %s", r.FieldID, op, r.Value))
}

// escape replaces double quotes, which end a Mermaid label.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
