// Package service implements the domain transfer workflow.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"renewals/internal/clients/identity"
	"renewals/internal/clients/resource"
	"renewals/internal/notification"
	"renewals/internal/outbox"
	"renewals/internal/transfer/metrics"
	"renewals/internal/transfer/models"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/sentinel"
	"renewals/pkg/requestcontext"
)

// Store persists transfers. Update applies mutate only when validate passes,
// holding a row lock (or mutex) across both.
type Store interface {
	Create(ctx context.Context, t *models.Transfer) error
	FindByID(ctx context.Context, id domain.TransferID) (*models.Transfer, error)
	ListByDomain(ctx context.Context, domainID domain.DomainID) ([]*models.Transfer, error)
	ListByActor(ctx context.Context, role domain.Role, id domain.EmployeeID) ([]*models.Transfer, error)
	Update(ctx context.Context, id domain.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error)
	SetSyncStatus(ctx context.Context, id domain.TransferID, status domain.SyncStatus, syncErr string) error
}

// StoreTx runs fn in a transaction that the store and the outbox both join
// through txCtx.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type Directory interface {
	GetDomain(ctx context.Context, id domain.DomainID) (*resource.Domain, error)
}

type Identity interface {
	GetUser(ctx context.Context, role domain.Role, id domain.EmployeeID) (*identity.User, error)
}

type Outbox interface {
	Enqueue(ctx context.Context, msg outbox.Message) error
	Requeue(ctx context.Context, aggType outbox.AggregateType, aggID int64) error
}

// Kicker wakes the outbox relay after a commit.
type Kicker interface {
	Kick()
}

// Service orchestrates transfer creation, approval and directory sync.
type Service struct {
	store     Store
	tx        StoreTx
	directory Directory
	identity  Identity
	outbox    Outbox
	kicker    Kicker
	notifier  notification.Emitter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n notification.Emitter) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithKicker(k Kicker) Option {
	return func(s *Service) {
		s.kicker = k
	}
}

// New constructs a Service.
func New(store Store, tx StoreTx, directory Directory, users Identity, ob Outbox, opts ...Option) *Service {
	s := &Service{
		store:     store,
		tx:        tx,
		directory: directory,
		identity:  users,
		outbox:    ob,
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer("renewals/transfer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "transfer."+op)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	attrs = append(attrs,
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", requestcontext.Actor(ctx).ID.String(),
		"client", requestcontext.Client(ctx),
	)
	args := append([]any{"event", event, "log_type", "audit"}, attrs...)
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) notify(ctx context.Context, event notification.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "transfer notification failed",
			"event_type", string(event.EventType),
			"error", err,
		)
	}
}

func (s *Service) kick() {
	if s.kicker != nil {
		s.kicker.Kick()
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(dErrors.CodeOf(err))
}

// wrapStoreErr translates store sentinels. Domain errors raised by model
// guards pass through unchanged.
func wrapStoreErr(err error, action string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "transfer not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "an open transfer already exists for this domain")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}
