// Package lint reports authoring mistakes in form definitions that the engine
// tolerates at runtime but that almost always mean the form will not behave as
// its author expects.
package lint

import (
	"fmt"
	"sort"

	"github.com/aretw0/formflow/pkg/domain"
)

// Severity ranks an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding.
type Issue struct {
	Severity  Severity `json:"severity"`
	SectionID string   `json:"section,omitempty"`
	FieldID   string   `json:"field,omitempty"`
	Message   string   `json:"message"`
}

func (i Issue) String() string {
	loc := i.SectionID
	if i.FieldID != "" {
		loc += "/" + i.FieldID
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", i.Severity, loc, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Check inspects a definition. Structural problems reported by
// domain.FormDefinition.Validate come back as a single error issue.
func Check(def *domain.FormDefinition) []Issue {
	norm := domain.Normalize(def)
	if err := norm.Validate(); err != nil {
		return []Issue{{Severity: SeverityError, Message: err.Error()}}
	}

	l := &linter{def: norm}
	for si, s := range norm.Sections {
		l.section(si, s)
	}
	l.slugs()
	return l.issues
}

type linter struct {
	def    *domain.FormDefinition
	issues []Issue
}

func (l *linter) add(sev Severity, section, field, format string, args ...any) {
	l.issues = append(l.issues, Issue{Severity: sev, SectionID: section, FieldID: field, Message: fmt.Sprintf(format, args...)})
}

func (l *linter) section(si int, s domain.Section) {
	if len(s.Fields) == 0 {
		l.add(SeverityWarning, s.ID, "", "section has no fields")
	}
	if s.Navigation != nil && s.Navigation.Type != domain.NavigationNext && s.Navigation.Type != domain.NavigationSubmit {
		l.add(SeverityError, s.ID, "", "unknown navigation type %q", s.Navigation.Type)
	}

	if rule := s.Conditional; rule.Active() {
		l.condition(s.ID, "", rule)
		owner := l.def.FieldSection(rule.FieldID)
		switch {
		case owner < 0:
			l.add(SeverityError, s.ID, "", "visibility rule references unknown field %q", rule.FieldID)
		case si == 0:
			l.add(SeverityWarning, s.ID, "", "the first section is always visible; its rule is ignored")
		case owner >= si:
			l.add(SeverityWarning, s.ID, "", "visibility rule references field %q which is not answered before this section", rule.FieldID)
		}
	}

	for _, f := range s.Fields {
		l.field(si, s, f)
	}
}

func (l *linter) field(si int, s domain.Section, f domain.Field) {
	if f.Type.IsChoice() && len(f.Options) == 0 {
		l.add(SeverityWarning, s.ID, f.ID, "%s field has no options", f.Type)
	}
	if !f.Type.IsChoice() && len(f.Options) > 0 {
		l.add(SeverityWarning, s.ID, f.ID, "options are ignored on %s fields", f.Type)
	}
	if f.Type.IsPresentational() && (f.Required || f.IsUnique) {
		l.add(SeverityWarning, s.ID, f.ID, "%s fields collect no answer; required and unique are ignored", f.Type)
	}
	if f.EmailDomain != "" && f.EmailDomain != domain.EmailDomainAny && f.EmailDomain != domain.EmailDomainHitam {
		l.add(SeverityWarning, s.ID, f.ID, "unknown email domain %q", f.EmailDomain)
	}
	switch f.PhonePattern {
	case "", domain.PhoneAny, domain.PhoneIndia, domain.PhoneInternational:
	default:
		l.add(SeverityWarning, s.ID, f.ID, "unknown phone pattern %q", f.PhonePattern)
	}

	if rule := f.Conditional; rule.Active() {
		l.condition(s.ID, f.ID, rule)
		if rule.FieldID == f.ID {
			l.add(SeverityError, s.ID, f.ID, "field rule references itself")
		} else if !inSection(s, rule.FieldID) {
			l.add(SeverityWarning, s.ID, f.ID, "field rule references %q outside the section; the field will always be hidden", rule.FieldID)
		}
	}

	if len(f.ConditionalMapping) > 0 && !f.Type.IsChoice() {
		l.add(SeverityWarning, s.ID, f.ID, "conditional mapping on a %s field can only match exact text", f.Type)
	}

	values := make([]string, 0, len(f.ConditionalMapping))
	for v := range f.ConditionalMapping {
		values = append(values, v)
	}
	sort.Strings(values)
	for _, value := range values {
		if f.Type.IsChoice() && !hasOption(f, value) {
			l.add(SeverityWarning, s.ID, f.ID, "mapping for %q matches no option label", value)
		}
		for _, target := range f.ConditionalMapping[value] {
			if target == domain.SubmitTarget {
				continue
			}
			ti := l.def.SectionIndex(target)
			switch {
			case ti < 0:
				l.add(SeverityError, s.ID, f.ID, "mapping for %q jumps to unknown section %q", value, target)
			case ti <= si:
				l.add(SeverityWarning, s.ID, f.ID, "mapping for %q jumps backwards to %q; the walk stops there", value, target)
			}
		}
	}
}

func (l *linter) condition(section, field string, rule *domain.VisibilityRule) {
	switch rule.Condition {
	case "", domain.ConditionEquals, domain.ConditionNotEquals, domain.ConditionContains:
		return
	}
	l.add(SeverityError, section, field, "unknown rule condition %q", rule.Condition)
}

// slugs reports answer fields whose labels map to the same storage key.
func (l *linter) slugs() {
	seen := make(map[string]string)
	for _, s := range l.def.Sections {
		for _, f := range s.Fields {
			if !f.CollectsAnswer() {
				continue
			}
			key := f.StorageKey()
			if prev, ok := seen[key]; ok {
				l.add(SeverityWarning, s.ID, f.ID, "label slug %q collides with field %q; one answer will overwrite the other", key, prev)
				continue
			}
			seen[key] = f.ID
		}
	}
}

func inSection(s domain.Section, id string) bool {
	for _, f := range s.Fields {
		if f.ID == id {
			return true
		}
	}
	return false
}

func hasOption(f domain.Field, label string) bool {
	for _, o := range f.Options {
		if o.Label == label {
			return true
		}
	}
	return false
}
