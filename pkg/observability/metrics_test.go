package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/aretw0/formflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func base(t domain.EventType) domain.EventBase {
	return domain.EventBase{Type: t, SessionID: "s1", FormID: "reg", Timestamp: time.Now()}
}

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnSectionEnter(ctx, &domain.SectionEvent{EventBase: base(domain.EventSectionEnter), SectionID: "details"})
	hooks.OnAdvanceBlock(ctx, &domain.SectionEvent{EventBase: base(domain.EventAdvanceBlock), Reason: "pending"})
	hooks.OnUniqueCheck(ctx, &domain.UniqueCheckEvent{EventBase: base(domain.EventUniqueCheck), Outcome: "stale", Duration: time.Millisecond})
	hooks.OnUniqueCheck(ctx, &domain.UniqueCheckEvent{EventBase: base(domain.EventUniqueCheck), Outcome: "duplicate"})
	hooks.OnSubmit(ctx, &domain.SubmitEvent{EventBase: base(domain.EventSubmit), Status: domain.StatusPendingPayment})
	hooks.OnSubmit(ctx, &domain.SubmitEvent{EventBase: base(domain.EventSubmitFailure), Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Advances.WithLabelValues("reg", "details")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Blocked.WithLabelValues("reg", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UniqueChecks.WithLabelValues("reg", "stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UniqueChecks.WithLabelValues("reg", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("reg", "pending_payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("reg", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CheckDuration))
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := observability.NewMetrics(reg)
	second := observability.NewMetrics(reg)

	second.Hooks().OnSectionEnter(context.Background(), &domain.SectionEvent{EventBase: base(domain.EventSectionEnter), SectionID: "a"})
	assert.Equal(t, 1.0, testutil.ToFloat64(first.Advances.WithLabelValues("reg", "a")))
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LoggingHooks(logger)
	ctx := context.Background()

	hooks.OnAdvanceBlock(ctx, &domain.SectionEvent{EventBase: base(domain.EventAdvanceBlock), SectionID: "s", Reason: "invalid"})
	hooks.OnSubmit(ctx, &domain.SubmitEvent{EventBase: base(domain.EventSubmit), SubmissionID: "sub-1", Status: domain.StatusConfirmed})

	out := buf.String()
	assert.Contains(t, out, "advance_blocked")
	assert.Contains(t, out, "reason=invalid")
	assert.Contains(t, out, "submission_id=sub-1")
}
