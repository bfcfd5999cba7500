// Package service implements the IP renewal workflow. An operator requests a
// renewal with an approval proof, the domain's approver decides, and the
// domain's network operator executes it. Only execution touches the resource
// directory, through the outbox.
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
	"renewals/internal/iprenewal/metrics"
	"renewals/internal/iprenewal/models"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/sentinel"
	"renewals/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, r *models.Renewal) error
	FindByID(ctx context.Context, id domain.IPRenewalID) (*models.Renewal, error)
	ListByResource(ctx context.Context, ipID domain.IPID) ([]*models.Renewal, error)
	CountByResource(ctx context.Context, ipID domain.IPID) (int64, error)
	ListByActor(ctx context.Context, role domain.Role, id domain.EmployeeID) ([]*models.Renewal, error)
	Update(ctx context.Context, id domain.IPRenewalID, validate func(*models.Renewal) error, mutate func(*models.Renewal)) (*models.Renewal, error)
	SetSyncStatus(ctx context.Context, id domain.IPRenewalID, status domain.SyncStatus, syncErr string) error
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type Directory interface {
	GetDomain(ctx context.Context, id domain.DomainID) (*resource.Domain, error)
	GetIP(ctx context.Context, id domain.IPID) (*resource.IP, error)
}

type Identity interface {
	GetUser(ctx context.Context, role domain.Role, id domain.EmployeeID) (*identity.User, error)
	GetSupervisors(ctx context.Context, id domain.EmployeeID) (*identity.Supervisors, error)
}

type Outbox interface {
	Enqueue(ctx context.Context, msg outbox.Message) error
	Requeue(ctx context.Context, aggType outbox.AggregateType, aggID int64) error
}

type Kicker interface {
	Kick()
}

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

func New(store Store, tx StoreTx, directory Directory, users Identity, ob Outbox, opts ...Option) *Service {
	s := &Service{
		store:     store,
		tx:        tx,
		directory: directory,
		identity:  users,
		outbox:    ob,
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer("renewals/iprenewal"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "iprenewal."+op)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
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
		s.logger.WarnContext(ctx, "ip renewal notification failed",
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

func wrapStoreErr(err error, action string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "ip renewal not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "an open renewal already exists for this ip")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}
