package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/formflow/pkg/lint"
	"github.com/aretw0/formflow/pkg/ports"
)

// Report is the lint outcome of one form.
type Report struct {
	FormID string
	// Err is set when the definition could not be loaded at all.
	Err    error
	Issues []lint.Issue
}

// Failed reports whether the form has load errors or error-level issues.
func (r Report) Failed() bool {
	return r.Err != nil || lint.HasErrors(r.Issues)
}

// Lint checks the given forms, or every form of the store when ids is empty.
func Lint(ctx context.Context, defs ports.DefinitionStore, ids ...string) ([]Report, error) {
	if len(ids) == 0 {
		var err error
		if ids, err = defs.ListForms(ctx); err != nil {
			return nil, fmt.Errorf("list forms: %w", err)
		}
	}
	reports := make([]Report, 0, len(ids))
	for _, id := range ids {
		r := Report{FormID: id}
		def, err := defs.GetFormDefinition(ctx, id)
		if err != nil {
			r.Err = err
		} else {
			r.Issues = lint.Check(def)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// PrintReports writes a human readable summary and reports whether any form failed.
func PrintReports(w io.Writer, reports []Report) bool {
	failed := false
	for _, r := range reports {
		switch {
		case r.Err != nil:
			failed = true
			fmt.Fprintf(w, "✗ %s\n    %v\n", r.FormID, r.Err)
		case len(r.Issues) == 0:
			fmt.Fprintf(w, "✓ %s\n", r.FormID)
		default:
			mark := "!"
			if lint.HasErrors(r.Issues) {
				failed = true
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s\n", mark, r.FormID)
			for _, issue := range r.Issues {
				fmt.Fprintf(w, "    %s\n", issue)
			}
		}
	}
	return failed
}
