package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/formflow/pkg/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const hitamSuffix = "@hitam.org"

// Result is the outcome of validating one field.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}

// Pass is the successful Result.
func Pass() Result {
	return Result{OK: true}
}

func fail(kind Kind, format string, args ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Err converts a failed Result into a FieldError for field. It returns nil on success.
func (r Result) Err(field domain.Field) *FieldError {
	if r.OK {
		return nil
	}
	return &FieldError{FieldID: field.ID, Label: field.Label, Kind: r.Kind, Message: r.Message}
}

// ValidateField runs the synchronous checks for one field: required first, then format.
// Uniqueness is not part of this check; see UniquenessChecker.
func ValidateField(field domain.Field, answers domain.Answers, files domain.UploadedFiles) Result {
	if !field.CollectsAnswer() {
		return Pass()
	}

	if field.Type == domain.FieldFile {
		if field.Required && len(files[field.ID]) == 0 {
			return fail(KindRequired, "%s is required", labelOf(field))
		}
		return Pass()
	}

	value := answers[field.ID]
	if domain.IsEmpty(value) {
		if field.Required {
			return fail(KindRequired, "%s is required", labelOf(field))
		}
		return Pass()
	}

	switch field.Type {
	case domain.FieldEmail:
		return Email(domain.AsString(value), field.EmailDomain)
	case domain.FieldPhone:
		return Phone(domain.AsString(value), field.PhonePattern)
	}
	return Pass()
}

// Email validates an address. Blank input passes; required-ness is checked elsewhere.
func Email(value, emailDomain string) Result {
	value = strings.TrimSpace(value)
	if value == "" {
		return Pass()
	}
	if !emailPattern.MatchString(value) {
		return fail(KindFormat, "Enter a valid email address")
	}
	if emailDomain == domain.EmailDomainHitam && !strings.HasSuffix(strings.ToLower(value), hitamSuffix) {
		return fail(KindFormat, "Use your %s email address", hitamSuffix)
	}
	return Pass()
}

// Phone validates a phone number against a pattern. Blank input passes.
func Phone(value, pattern string) Result {
	value = strings.TrimSpace(value)
	if value == "" {
		return Pass()
	}
	digits := countDigits(value)

	switch pattern {
	case domain.PhoneIndia:
		if digits != 10 {
			return fail(KindFormat, "Enter a 10-digit phone number")
		}
	case domain.PhoneInternational:
		if !strings.HasPrefix(value, "+") || digits < 10 {
			return fail(KindFormat, "Enter the number with its country code, starting with +")
		}
	default:
		if digits < 10 {
			return fail(KindFormat, "Enter a phone number with at least 10 digits")
		}
	}
	return Pass()
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func labelOf(field domain.Field) string {
	if label := strings.TrimSpace(field.Label); label != "" {
		return label
	}
	return "This field"
}

// ValidateFields validates every field and aggregates the failures.
// Callers pass only the fields that are currently visible.
func ValidateFields(fields []domain.Field, answers domain.Answers, files domain.UploadedFiles) error {
	aggr := &AggregateError{}
	for _, field := range fields {
		if fe := ValidateField(field, answers, files).Err(field); fe != nil {
			aggr.Add(fe)
		}
	}
	return aggr.ErrOrNil()
}
