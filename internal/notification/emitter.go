// Package notification fires workflow events at the notification service.
// Delivery is best effort: use cases emit after their transaction commits and
// never fail because a notification could not be sent.
package notification

import (
	"context"
	"log/slog"
	"time"
)

type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LogEmitter writes events to the log. Used when no transport is configured.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, event Event) error {
	e.logger.InfoContext(ctx, "notification",
		"event_type", string(event.EventType),
		"domain_id", int64(event.Data.DomainID),
		"triggered_by", int64(event.TriggeredBy.EmpNo),
		"role", event.TriggeredBy.Role,
	)
	return nil
}

// BestEffort wraps an Emitter so failures are logged and counted but never returned.
type BestEffort struct {
	next    Emitter
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
}

func NewBestEffort(next Emitter, logger *slog.Logger, metrics *Metrics) *BestEffort {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffort{next: next, logger: logger, metrics: metrics, timeout: 3 * time.Second}
}

// WithTimeout bounds each emission.
func (b *BestEffort) WithTimeout(d time.Duration) *BestEffort {
	if d > 0 {
		b.timeout = d
	}
	return b
}

func (b *BestEffort) Emit(ctx context.Context, event Event) error {
	if b.next == nil {
		return nil
	}
	// Detached from request cancellation; the request may already be finishing.
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if err := b.next.Emit(emitCtx, event); err != nil {
		b.metrics.incFailed(string(event.EventType))
		b.logger.WarnContext(ctx, "notification delivery failed",
			"event_type", string(event.EventType),
			"domain_id", int64(event.Data.DomainID),
			"error", err,
		)
		return nil
	}
	b.metrics.incSent(string(event.EventType))
	return nil
}
