package service

import (
	"context"
	"errors"
	"time"

	"renewals/internal/clients/upstream"
	"renewals/internal/notification"
	"renewals/internal/outbox"
	"renewals/internal/outbox/effects"
	"renewals/internal/vaptrenewal/models"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/sentinel"
	"renewals/pkg/requestcontext"
)

type CreateCommand struct {
	DomainID  domain.DomainID
	VaptID    domain.VaptID
	NewReport []byte
	NewExpiry time.Time
	Remarks   string
}

// DecisionCommand is the approver's input for Approve and Reject. DomainID
// must repeat the renewal's domain.
type DecisionCommand struct {
	DomainID domain.DomainID
	Remarks  string
}

type ReviewCommand struct {
	DomainID  domain.DomainID
	NewReport []byte
	NewExpiry *time.Time
	Remarks   string
}

// Create opens a renewal for a VAPT record. The current report in the
// directory is kept as the prior artifact.
func (s *Service) Create(ctx context.Context, actor domain.Actor, cmd CreateCommand) (_ *models.Renewal, err error) {
	ctx, end := s.startSpan(ctx, "Create")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("create", outcome(err), start)
	}()

	existing, err := s.store.ListByResource(ctx, cmd.VaptID)
	if err != nil {
		return nil, wrapStoreErr(err, "load vapt renewals")
	}
	for _, r := range existing {
		if r.IsOpen() {
			return nil, dErrors.New(dErrors.CodeConflict, "an open renewal already exists for this vapt")
		}
	}

	dom, err := s.directory.GetDomain(ctx, cmd.DomainID)
	if err != nil {
		return nil, upstream.ToDomain(err, "domain not found")
	}
	vapt, err := s.directory.GetVapt(ctx, cmd.VaptID)
	if err != nil {
		return nil, upstream.ToDomain(err, "vapt record not found")
	}
	if vapt.DomainID != dom.ID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "vapt record does not belong to this domain")
	}
	if dom.DRM != actor.ID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the domain's operator can renew its vapt")
	}
	supervisors, err := s.identity.GetSupervisors(ctx, actor.ID)
	if err != nil {
		return nil, upstream.ToDomain(err, "supervisors not found")
	}
	if supervisors.Empty() {
		return nil, dErrors.New(dErrors.CodeNotFound, "no approver is assigned to this operator")
	}
	approver := dom.HOD
	if approver.IsNil() {
		approver = supervisors.HOD
	}

	count, err := s.store.CountByResource(ctx, cmd.VaptID)
	if err != nil {
		return nil, wrapStoreErr(err, "count vapt renewals")
	}

	now := requestcontext.Now(ctx)
	r, err := models.NewRenewal(models.Draft{
		DomainID:    dom.ID,
		VaptID:      vapt.ID,
		Seq:         count + 1,
		PriorReport: vapt.Report,
		NewReport:   cmd.NewReport,
		NewExpiry:   cmd.NewExpiry,
		InitiatorID: actor.ID,
		ApproverID:  approver,
		Remarks:     cmd.Remarks,
	}, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, wrapStoreErr(err, "create vapt renewal")
	}
	s.metrics.IncOpen()

	s.logAudit(ctx, "vapt_renewal_created",
		"vapt_renewal_id", r.ID.String(),
		"vapt_id", r.VaptID.String(),
		"domain_id", r.DomainID.String(),
		"rnwl_no", r.Seq,
		"approver_id", r.ApproverID.String(),
	)
	s.notify(ctx, notification.NewEvent(notification.EventVaptRenewalRequested, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(dom.ID), DomainName: dom.Name, Remarks: r.InitiatorRemarks},
		notification.Recipients{
			HOD: notification.Recipient(r.ApproverID),
			ARM: notification.Recipient(supervisors.ARM),
		}))
	return r, nil
}

// Approve accepts the renewal and enqueues the VAPT update in the same
// transaction.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID, cmd DecisionCommand) (_ *models.Renewal, err error) {
	ctx, end := s.startSpan(ctx, "Approve")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("approve", outcome(err), start)
	}()

	now := requestcontext.Now(ctx)
	var updated *models.Renewal
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.Update(txCtx, id,
			func(r *models.Renewal) error { return r.CanApprove(actor.ID, cmd.DomainID) },
			func(r *models.Renewal) { r.ApplyApproval(cmd.Remarks, now) },
		)
		if err != nil {
			return err
		}
		if err := s.enqueueUpdate(txCtx, r, now); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, "approve vapt renewal")
	}
	s.kick()
	s.metrics.DecOpen()

	s.logAudit(ctx, "vapt_renewal_approved",
		"vapt_renewal_id", updated.ID.String(),
		"vapt_id", updated.VaptID.String(),
		"sync_status", updated.SyncStatus.String(),
	)
	s.notify(ctx, notification.NewEvent(notification.EventVaptRenewalApproved, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(updated.DomainID), Remarks: updated.ApproverRemarks},
		notification.Recipients{DRM: notification.Recipient(updated.InitiatorID)}))
	return updated, nil
}

func (s *Service) Reject(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID, cmd DecisionCommand) (_ *models.Renewal, err error) {
	ctx, end := s.startSpan(ctx, "Reject")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("reject", outcome(err), start)
	}()

	now := requestcontext.Now(ctx)
	r, err := s.store.Update(ctx, id,
		func(r *models.Renewal) error { return r.CanReject(actor.ID, cmd.DomainID) },
		func(r *models.Renewal) { r.ApplyRejection(cmd.Remarks, now) },
	)
	if err != nil {
		return nil, wrapStoreErr(err, "reject vapt renewal")
	}

	s.logAudit(ctx, "vapt_renewal_rejected", "vapt_renewal_id", r.ID.String(), "vapt_id", r.VaptID.String())
	s.notify(ctx, notification.NewEvent(notification.EventVaptRenewalRejected, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(r.DomainID), Remarks: r.ApproverRemarks},
		notification.Recipients{DRM: notification.Recipient(r.InitiatorID)}))
	return r, nil
}

// Review resubmits a rejected renewal for a new approval cycle.
func (s *Service) Review(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID, cmd ReviewCommand) (_ *models.Renewal, err error) {
	ctx, end := s.startSpan(ctx, "Review")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("review", outcome(err), start)
	}()

	now := requestcontext.Now(ctx)
	r, err := s.store.Update(ctx, id,
		func(r *models.Renewal) error { return r.CanReview(actor.ID, cmd.DomainID) },
		func(r *models.Renewal) {
			r.ApplyReview(models.Revision{NewReport: cmd.NewReport, NewExpiry: cmd.NewExpiry, Remarks: cmd.Remarks}, now)
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "review vapt renewal")
	}

	s.logAudit(ctx, "vapt_renewal_reviewed", "vapt_renewal_id", r.ID.String(), "vapt_id", r.VaptID.String())
	s.notify(ctx, notification.NewEvent(notification.EventVaptRenewalReviewed, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(r.DomainID), Remarks: r.InitiatorRemarks},
		notification.Recipients{HOD: notification.Recipient(r.ApproverID)}))
	return r, nil
}

// Resync re-arms a dead VAPT update. Only the approver may ask.
func (s *Service) Resync(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID) (_ *models.Renewal, err error) {
	ctx, end := s.startSpan(ctx, "Resync")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("resync", outcome(err), start)
	}()

	now := requestcontext.Now(ctx)
	var updated *models.Renewal
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.Update(txCtx, id,
			func(r *models.Renewal) error { return r.CanResync(actor.ID) },
			func(r *models.Renewal) { r.ApplyResync(now) },
		)
		if err != nil {
			return err
		}
		err = s.outbox.Requeue(txCtx, outbox.AggregateVaptRenewal, int64(r.ID))
		if errors.Is(err, sentinel.ErrNotFound) {
			err = s.enqueueUpdate(txCtx, r, now)
		}
		if err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, "resync vapt renewal")
	}
	s.kick()

	s.logAudit(ctx, "vapt_renewal_resync_requested", "vapt_renewal_id", updated.ID.String())
	return updated, nil
}

func (s *Service) enqueueUpdate(ctx context.Context, r *models.Renewal, now time.Time) error {
	msg, err := effects.VaptUpdateMessage(r.ID, effects.VaptUpdatePayload{
		VaptID:    r.VaptID,
		NewExpiry: r.NewExpiry,
		NewReport: r.NewReport,
	}, now)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, msg)
}

// RecordSync stores the relay's delivery outcome on the renewal.
func (s *Service) RecordSync(ctx context.Context, aggregateID int64, status domain.SyncStatus, reason string) error {
	id := domain.VaptRenewalID(aggregateID)
	if err := s.store.SetSyncStatus(ctx, id, status, reason); err != nil {
		return err
	}
	s.metrics.IncSync(status.String())
	s.logAudit(ctx, "vapt_renewal_sync_recorded",
		"vapt_renewal_id", id.String(),
		"sync_status", status.String(),
		"sync_error", reason,
	)

	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil
	}
	now := requestcontext.Now(ctx)
	data := notification.Data{DomainID: domain.FlexibleInt(r.DomainID), Remarks: reason}
	switch status {
	case domain.SyncSynced:
		s.notify(ctx, notification.NewEvent(notification.EventVaptRenewed, domain.Actor{}, now, data,
			notification.Recipients{DRM: notification.Recipient(r.InitiatorID), HOD: notification.Recipient(r.ApproverID)}))
	case domain.SyncFailed:
		s.notify(ctx, notification.NewEvent(notification.EventSystemAlert, domain.Actor{}, now, data,
			notification.Recipients{HOD: notification.Recipient(r.ApproverID)}))
	}
	return nil
}

// Get returns a renewal visible to its initiator or approver.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.VaptRenewalID) (*models.Renewal, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "load vapt renewal")
	}
	if !r.VisibleTo(actor.ID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a party to this renewal")
	}
	return r, nil
}

// List returns the operator's own renewals or the approver's queue.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]*models.Renewal, error) {
	out, err := s.store.ListByActor(ctx, actor.Role, actor.ID)
	if err != nil {
		return nil, wrapStoreErr(err, "list vapt renewals")
	}
	return out, nil
}
