package visibility

import (
	"strings"

	"github.com/aretw0/formflow/pkg/domain"
)

// EvaluateRule reports whether rule holds for the current answers.
// A nil, disabled or incomplete rule always holds, and so does an unknown condition.
func EvaluateRule(rule *domain.VisibilityRule, answers domain.Answers) bool {
	if !rule.Active() {
		return true
	}
	actual := answers[rule.FieldID]

	switch rule.Condition {
	case domain.ConditionEquals, "":
		return equals(actual, rule.Value)
	case domain.ConditionNotEquals:
		return !equals(actual, rule.Value)
	case domain.ConditionContains:
		return contains(actual, rule.Value)
	}
	return true
}

func equals(actual any, want string) bool {
	return domain.AsString(actual) == want
}

// contains matches a substring on text answers and membership on multi-valued answers.
func contains(actual any, want string) bool {
	switch actual.(type) {
	case []string, []any:
		return holds(actual, want)
	}
	return strings.Contains(domain.AsString(actual), want)
}

// holds reports whether the answer is exactly want, or includes it for multi-valued answers.
func holds(actual any, want string) bool {
	switch actual.(type) {
	case []string, []any:
		for _, v := range domain.AsStrings(actual) {
			if v == want {
				return true
			}
		}
		return false
	}
	return domain.AsString(actual) == want
}
