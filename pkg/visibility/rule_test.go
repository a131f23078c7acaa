package visibility

import (
	"testing"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateRule(t *testing.T) {
	rule := func(cond, value string) *domain.VisibilityRule {
		return &domain.VisibilityRule{Enabled: true, FieldID: "x", Condition: cond, Value: value}
	}

	tests := []struct {
		name   string
		rule   *domain.VisibilityRule
		answer any
		want   bool
	}{
		{"nil rule", nil, nil, true},
		{"disabled rule", &domain.VisibilityRule{FieldID: "x", Condition: domain.ConditionEquals, Value: "a"}, "b", true},
		{"equals match", rule(domain.ConditionEquals, "Yes"), "Yes", true},
		{"equals mismatch", rule(domain.ConditionEquals, "Yes"), "yes", false},
		{"equals unset", rule(domain.ConditionEquals, "Yes"), nil, false},
		{"not equals", rule(domain.ConditionNotEquals, "Yes"), "No", true},
		{"not equals unset", rule(domain.ConditionNotEquals, "Yes"), nil, true},
		{"contains substring", rule(domain.ConditionContains, "CSE"), "B.Tech CSE", true},
		{"contains list", rule(domain.ConditionContains, "Go"), []string{"Rust", "Go"}, true},
		{"contains list partial", rule(domain.ConditionContains, "G"), []any{"Go"}, false},
		{"number equals", rule(domain.ConditionEquals, "3"), float64(3), true},
		{"unknown condition", rule("matches", "a"), "b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateRule(tt.rule, domain.Answers{"x": tt.answer}))
		})
	}
}

func TestFieldVisible(t *testing.T) {
	year := domain.Field{ID: "year", Label: "Year", Type: domain.FieldSelect}
	branch := domain.Field{ID: "branch", Label: "Branch", Type: domain.FieldText,
		Conditional: &domain.VisibilityRule{Enabled: true, FieldID: "year", Condition: domain.ConditionEquals, Value: "1st"}}
	orphan := domain.Field{ID: "orphan", Type: domain.FieldText,
		Conditional: &domain.VisibilityRule{Enabled: true, FieldID: "elsewhere", Value: "x"}}
	s := domain.Section{ID: "s", Fields: []domain.Field{year, branch, orphan}}

	assert.True(t, FieldVisible(s, year, nil))
	assert.False(t, FieldVisible(s, branch, domain.Answers{}))
	assert.False(t, FieldVisible(s, branch, domain.Answers{"year": "2nd"}))
	assert.True(t, FieldVisible(s, branch, domain.Answers{"year": "1st"}))
	assert.False(t, FieldVisible(s, orphan, domain.Answers{"elsewhere": "x"}), "rules only look at siblings")

	visible := VisibleFields(s, domain.Answers{"year": "1st"})
	assert.Len(t, visible, 2)
	assert.Equal(t, "branch", visible[1].ID)
}

func TestSubmitsOn(t *testing.T) {
	f := domain.Field{ID: "q", ConditionalMapping: map[string]domain.TargetList{"No": {domain.SubmitTarget}, "Yes": {"s2"}}}

	assert.True(t, SubmitsOn(f, "No"))
	assert.False(t, SubmitsOn(f, "Yes"))
	assert.True(t, SubmitsOn(f, []string{"Yes", "No"}))
	assert.False(t, SubmitsOn(f, nil))
}
