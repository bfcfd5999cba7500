package service

import (
	"context"
	"errors"
	"time"

	"renewals/internal/clients/upstream"
	"renewals/internal/notification"
	"renewals/internal/outbox"
	"renewals/internal/outbox/effects"
	"renewals/internal/transfer/models"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/sentinel"
	"renewals/pkg/requestcontext"
)

// CreateCommand carries the initiator's transfer proposal.
type CreateCommand struct {
	DomainID domain.DomainID
	FromID   domain.EmployeeID
	ToID     domain.EmployeeID
	Reason   string
	Proof    []byte
}

// Create opens a transfer. Input and authorization checks run before any
// write; the store's partial unique index settles concurrent creators.
func (s *Service) Create(ctx context.Context, actor domain.Actor, cmd CreateCommand) (_ *models.Transfer, err error) {
	ctx, end := s.startSpan(ctx, "Create")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("create", outcome(err), start)
	}()

	if cmd.FromID == cmd.ToID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "transfer source and destination must differ")
	}
	if actor.ID != cmd.FromID {
		return nil, dErrors.New(dErrors.CodeForbidden, "transfers can only be initiated by the current operator")
	}

	existing, err := s.store.ListByDomain(ctx, cmd.DomainID)
	if err != nil {
		return nil, wrapStoreErr(err, "load transfers")
	}
	for _, t := range existing {
		if t.IsOpen() {
			return nil, dErrors.New(dErrors.CodeConflict, "an open transfer already exists for this domain")
		}
	}

	dom, err := s.directory.GetDomain(ctx, cmd.DomainID)
	if err != nil {
		return nil, upstream.ToDomain(err, "domain not found")
	}
	if _, err := s.identity.GetUser(ctx, domain.RoleDRM, cmd.FromID); err != nil {
		return nil, upstream.ToDomain(err, "source operator not found")
	}
	if _, err := s.identity.GetUser(ctx, domain.RoleDRM, cmd.ToID); err != nil {
		return nil, upstream.ToDomain(err, "destination operator not found")
	}
	if dom.DRM != cmd.FromID {
		return nil, dErrors.New(dErrors.CodeForbidden, "source operator is not assigned to this domain")
	}
	if dom.HOD.IsNil() {
		return nil, dErrors.New(dErrors.CodeNotFound, "domain has no approver assigned")
	}

	now := requestcontext.Now(ctx)
	t, err := models.NewTransfer(cmd.DomainID, cmd.FromID, cmd.ToID, dom.HOD, cmd.Reason, cmd.Proof, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, wrapStoreErr(err, "create transfer")
	}

	s.logAudit(ctx, "transfer_created",
		"transfer_id", t.ID.String(),
		"domain_id", t.DomainID.String(),
		"from_id", t.FromID.String(),
		"to_id", t.ToID.String(),
		"approver_id", t.ApproverID.String(),
	)
	s.notify(ctx, notification.NewEvent(notification.EventTransferStarted, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(dom.ID), DomainName: dom.Name, Remarks: t.Reason},
		notification.Recipients{
			DRM: notification.Recipient(t.ToID),
			HOD: notification.Recipient(t.ApproverID),
		}))
	return t, nil
}

// Approve records the approver's decision and, in the same transaction,
// enqueues the operator change for the resource directory. The returned
// transfer reports SYNC_PENDING until the relay delivers it.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, id domain.TransferID, remarks string) (_ *models.Transfer, err error) {
	ctx, end := s.startSpan(ctx, "Approve")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("approve", outcome(err), start)
	}()

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "load transfer")
	}
	if err := current.CanApprove(actor.ID); err != nil {
		return nil, err
	}
	if _, err := s.identity.GetUser(ctx, domain.RoleHOD, actor.ID); err != nil {
		return nil, upstream.ToDomain(err, "approver not found")
	}

	now := requestcontext.Now(ctx)
	var updated *models.Transfer
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.store.Update(txCtx, id,
			func(t *models.Transfer) error { return t.CanApprove(actor.ID) },
			func(t *models.Transfer) { t.ApplyApproval(remarks, now) },
		)
		if err != nil {
			return err
		}
		if err := s.enqueueOperatorChange(txCtx, t, now); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, "approve transfer")
	}
	s.kick()

	s.logAudit(ctx, "transfer_approved",
		"transfer_id", updated.ID.String(),
		"domain_id", updated.DomainID.String(),
		"to_id", updated.ToID.String(),
		"sync_status", updated.SyncStatus.String(),
	)
	s.notify(ctx, notification.NewEvent(notification.EventTransferApproved, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(updated.DomainID), Remarks: updated.ApproverRemarks},
		notification.Recipients{
			DRM: notification.Recipient(updated.ToID),
			HOD: notification.Recipient(updated.ApproverID),
		}))
	return updated, nil
}

// Resync re-arms a dead directory update. Only the approver may ask, and only
// after the relay has given up.
func (s *Service) Resync(ctx context.Context, actor domain.Actor, id domain.TransferID) (_ *models.Transfer, err error) {
	ctx, end := s.startSpan(ctx, "Resync")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("resync", outcome(err), start)
	}()

	now := requestcontext.Now(ctx)
	var updated *models.Transfer
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.store.Update(txCtx, id,
			func(t *models.Transfer) error { return t.CanResync(actor.ID) },
			func(t *models.Transfer) { t.ApplyResync(now) },
		)
		if err != nil {
			return err
		}
		err = s.outbox.Requeue(txCtx, outbox.AggregateTransfer, int64(t.ID))
		if errors.Is(err, sentinel.ErrNotFound) {
			err = s.enqueueOperatorChange(txCtx, t, now)
		}
		if err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, "resync transfer")
	}
	s.kick()

	s.logAudit(ctx, "transfer_resync_requested", "transfer_id", updated.ID.String())
	return updated, nil
}

func (s *Service) enqueueOperatorChange(ctx context.Context, t *models.Transfer, now time.Time) error {
	msg, err := effects.DomainOperatorMessage(t.ID, effects.DomainOperatorPayload{
		DomainID:   t.DomainID,
		OperatorID: t.ToID,
	}, now)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, msg)
}

// RecordSync stores the relay's delivery outcome on the transfer. A delivered
// change completes the transfer; a dead one raises an alert to the approver.
func (s *Service) RecordSync(ctx context.Context, aggregateID int64, status domain.SyncStatus, reason string) error {
	id := domain.TransferID(aggregateID)
	if err := s.store.SetSyncStatus(ctx, id, status, reason); err != nil {
		return err
	}
	s.metrics.IncSync(status.String())
	s.logAudit(ctx, "transfer_sync_recorded",
		"transfer_id", id.String(),
		"sync_status", status.String(),
		"sync_error", reason,
	)

	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil
	}
	now := requestcontext.Now(ctx)
	data := notification.Data{DomainID: domain.FlexibleInt(t.DomainID), Remarks: reason}
	switch status {
	case domain.SyncSynced:
		s.notify(ctx, notification.NewEvent(notification.EventTransferFinished, domain.Actor{}, now, data,
			notification.Recipients{DRM: notification.Recipient(t.ToID), HOD: notification.Recipient(t.ApproverID)}))
	case domain.SyncFailed:
		s.notify(ctx, notification.NewEvent(notification.EventSystemAlert, domain.Actor{}, now, data,
			notification.Recipients{HOD: notification.Recipient(t.ApproverID)}))
	}
	return nil
}

// Get returns a transfer visible to actor: its source, destination or approver.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.TransferID) (*models.Transfer, error) {
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "load transfer")
	}
	if !t.VisibleTo(actor.ID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a party to this transfer")
	}
	return t, nil
}

// List returns the approver's queue for HODs and the sent/received transfers
// for operators.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]*models.Transfer, error) {
	out, err := s.store.ListByActor(ctx, actor.Role, actor.ID)
	if err != nil {
		return nil, wrapStoreErr(err, "list transfers")
	}
	return out, nil
}
