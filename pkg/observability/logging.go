package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/formflow/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that log every event.
// Section moves and checks log at Debug, blocks and failures at Info and Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSectionEnter: func(ctx context.Context, e *domain.SectionEvent) {
			logger.DebugContext(ctx, "section_enter",
				"session_id", e.SessionID,
				"form", e.FormID,
				"section", e.SectionID,
				"index", e.Index,
			)
		},
		OnAdvanceBlock: func(ctx context.Context, e *domain.SectionEvent) {
			logger.InfoContext(ctx, "advance_blocked",
				"session_id", e.SessionID,
				"form", e.FormID,
				"section", e.SectionID,
				"reason", e.Reason,
			)
		},
		OnUniqueCheck: func(ctx context.Context, e *domain.UniqueCheckEvent) {
			logger.DebugContext(ctx, "unique_check",
				"session_id", e.SessionID,
				"form", e.FormID,
				"field", e.FieldID,
				"outcome", e.Outcome,
				"duration", e.Duration,
			)
		},
		OnSubmit: func(ctx context.Context, e *domain.SubmitEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "submit_failed",
					"session_id", e.SessionID,
					"form", e.FormID,
					"failures", e.Failures,
					"err", e.Err,
				)
				return
			}
			logger.InfoContext(ctx, "submitted",
				"session_id", e.SessionID,
				"form", e.FormID,
				"submission_id", e.SubmissionID,
				"status", e.Status,
			)
		},
	}
}
