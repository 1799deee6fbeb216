// Package failurenotifier fans terminal job failures out to the configured
// notification sinks.
package failurenotifier

import (
	"cmp"
	"context"
	"log/slog"
	"sync"

	apperrors "github.com/linkhound/ingest/internal/errors"
	"github.com/linkhound/ingest/internal/observability/notify"
)

// SinkRegistration pairs a sink with the name used in delivery-error logs.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service dispatches failure events to every registered sink. Delivery is
// best effort: a failing sink is logged and does not block the others.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		entry.Name = cmp.Or(entry.Name, "sink")
		sinks = append(sinks, entry)
	}

	return &Service{logger: logger, sinks: sinks}
}

// Enabled reports whether any sinks are registered.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

// NotifyJobFailure sends the payload to all sinks concurrently and waits for
// them. Content failures are not paged: the page itself is bad and retrying
// or waking an operator fixes nothing.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}
	if payload.ErrorClass == string(apperrors.ErrCodeContent) {
		s.logger.DebugContext(ctx, "skipping notification for content failure",
			"job_id", payload.JobID,
			"job_type", payload.JobType,
		)
		return
	}
	payload.Severity = cmp.Or(payload.Severity, notify.SeverityCritical)

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendJobFailure(ctx, payload); err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"job_type", payload.JobType,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}
