package visibility

import "github.com/aretw0/formflow/pkg/domain"

// FieldVisible applies the single-hop field rule: a field with an active rule is shown
// only while a sibling field of the same section holds the exact value named by the rule.
// A rule that points outside the section hides the field.
func FieldVisible(section domain.Section, field domain.Field, answers domain.Answers) bool {
	rule := field.Conditional
	if !rule.Active() {
		return true
	}
	if rule.FieldID == field.ID || !hasField(section, rule.FieldID) {
		return false
	}
	return holds(answers[rule.FieldID], rule.Value)
}

// VisibleFields returns the fields of section currently shown, in definition order.
func VisibleFields(section domain.Section, answers domain.Answers) []domain.Field {
	out := make([]domain.Field, 0, len(section.Fields))
	for _, f := range section.Fields {
		if FieldVisible(section, f, answers) {
			out = append(out, f)
		}
	}
	return out
}

func hasField(section domain.Section, id string) bool {
	for _, f := range section.Fields {
		if f.ID == id {
			return true
		}
	}
	return false
}
