package visibility

import "github.com/aretw0/formflow/pkg/domain"

// Result is the visible set of a form for one set of answers.
type Result struct {
	// Sections holds the ids of visible sections in form order.
	Sections []string `json:"sections"`
	// Indexes holds the positions of the same sections.
	Indexes []int `json:"indexes"`
	// Terminated is true when a selected option mapped to the submit sentinel.
	Terminated bool `json:"terminated"`
	// Steps counts walk iterations. It never exceeds 2 × len(Sections of the form).
	Steps int `json:"steps"`
}

// Visible reports whether the section at index is in the set.
func (r Result) Visible(index int) bool {
	for _, i := range r.Indexes {
		if i == index {
			return true
		}
	}
	return false
}

// Contains reports whether the section id is in the set.
func (r Result) Contains(id string) bool {
	for _, s := range r.Sections {
		if s == id {
			return true
		}
	}
	return false
}

// Next returns the first visible index after from.
func (r Result) Next(from int) (int, bool) {
	for _, i := range r.Indexes {
		if i > from {
			return i, true
		}
	}
	return 0, false
}

// Prev returns the nearest visible index before from.
func (r Result) Prev(from int) (int, bool) {
	for k := len(r.Indexes) - 1; k >= 0; k-- {
		if r.Indexes[k] < from {
			return r.Indexes[k], true
		}
	}
	return 0, false
}

// Last returns the last visible index, or 0 for an empty set.
func (r Result) Last() int {
	if len(r.Indexes) == 0 {
		return 0
	}
	return r.Indexes[len(r.Indexes)-1]
}

// Resolve computes the visible sections of def for answers.
//
// The walk starts at section 0. At each section the conditional mappings of its
// visible, answered fields are looked up (checkbox answers use the union of every
// selected value). A submit sentinel ends the walk. Otherwise the first mapped
// section id becomes the next cursor, or the next index in order when nothing
// matched. Jumps must move strictly forward; a backward, lateral or unknown target
// ends the walk. The walk is capped at 2 × len(def.Sections) iterations.
//
// Sections reached by the walk are then filtered by their own Conditional rule.
// Section 0 is always visible. A legacy flat definition is normalized first.
func Resolve(def *domain.FormDefinition, answers domain.Answers) Result {
	var res Result
	def = def.Normalized()
	if def == nil || len(def.Sections) == 0 {
		return res
	}

	n := len(def.Sections)
	walked := []int{0}
	cursor := 0

	for res.Steps < 2*n {
		res.Steps++

		targets := matchedTargets(def.Sections[cursor], answers)
		if targets.Submits() {
			res.Terminated = true
			break
		}

		next := cursor + 1
		if id, ok := targets.Jump(); ok {
			next = def.SectionIndex(id)
			if next <= cursor {
				break
			}
		}
		if next >= n {
			break
		}

		cursor = next
		walked = append(walked, cursor)
	}

	for _, i := range walked {
		s := def.Sections[i]
		if i != 0 && !EvaluateRule(s.Conditional, answers) {
			continue
		}
		res.Sections = append(res.Sections, s.ID)
		res.Indexes = append(res.Indexes, i)
	}
	return res
}

// matchedTargets collects the mapping entries selected by the answers of a section,
// in field order.
func matchedTargets(section domain.Section, answers domain.Answers) domain.TargetList {
	var out domain.TargetList
	for _, f := range section.Fields {
		if len(f.ConditionalMapping) == 0 || !FieldVisible(section, f, answers) {
			continue
		}
		value, ok := answers[f.ID]
		if !ok || domain.IsEmpty(value) {
			continue
		}
		for _, selected := range domain.AsStrings(value) {
			out = append(out, f.ConditionalMapping[selected]...)
		}
	}
	return out
}

// SubmitsOn reports whether setting field to value selects a mapping entry that
// ends the form.
func SubmitsOn(field domain.Field, value any) bool {
	for _, selected := range domain.AsStrings(value) {
		if field.ConditionalMapping[selected].Submits() {
			return true
		}
	}
	return false
}
