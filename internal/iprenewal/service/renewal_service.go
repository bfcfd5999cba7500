package service

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"renewals/internal/clients/upstream"
	"renewals/internal/iprenewal/models"
	"renewals/internal/notification"
	"renewals/internal/outbox"
	"renewals/internal/outbox/effects"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/sentinel"
	strs "renewals/pkg/platform/strings"
	"renewals/pkg/requestcontext"
)

type CreateCommand struct {
	DomainID      domain.DomainID
	IPID          domain.IPID
	ApprovalProof []byte
	Remarks       string
}

// DecisionCommand is the approver's input for Approve and Reject. DomainID
// must repeat the renewal's domain.
type DecisionCommand struct {
	DomainID domain.DomainID
	Remarks  string
}

type ReviewCommand struct {
	DomainID      domain.DomainID
	ApprovalProof []byte
	Remarks       string
}

type CompleteCommand struct {
	NewAddresses []string
	NewExpiry    time.Time
	RenewalProof []byte
	Remarks      string
}

// Create opens a renewal for an IP assignment and snapshots the addresses
// currently on record.
func (s *Service) Create(ctx context.Context, actor domain.Actor, cmd CreateCommand) (_ *models.Renewal, err error) {
	ctx, end := s.startSpan(ctx, "Create")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("create", outcome(err), start)
	}()

	existing, err := s.store.ListByResource(ctx, cmd.IPID)
	if err != nil {
		return nil, wrapStoreErr(err, "load ip renewals")
	}
	for _, r := range existing {
		if r.IsOpen() {
			return nil, dErrors.New(dErrors.CodeConflict, "an open renewal already exists for this ip")
		}
	}

	dom, err := s.directory.GetDomain(ctx, cmd.DomainID)
	if err != nil {
		return nil, upstream.ToDomain(err, "domain not found")
	}
	ip, err := s.directory.GetIP(ctx, cmd.IPID)
	if err != nil {
		return nil, upstream.ToDomain(err, "ip record not found")
	}
	if ip.DomainID != dom.ID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "ip record does not belong to this domain")
	}
	if dom.DRM != actor.ID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the domain's operator can renew its ip")
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

	count, err := s.store.CountByResource(ctx, cmd.IPID)
	if err != nil {
		return nil, wrapStoreErr(err, "count ip renewals")
	}

	now := requestcontext.Now(ctx)
	r, err := models.NewRenewal(models.Draft{
		DomainID:       dom.ID,
		IPID:           ip.ID,
		Seq:            count + 1,
		PriorAddresses: ip.Addresses,
		ApprovalProof:  cmd.ApprovalProof,
		InitiatorID:    actor.ID,
		ApproverID:     approver,
		Remarks:        cmd.Remarks,
	}, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, wrapStoreErr(err, "create ip renewal")
	}
	s.metrics.IncOpen()

	s.logAudit(ctx, "ip_renewal_created",
		"ip_renewal_id", r.ID.String(),
		"ip_id", r.IPID.String(),
		"domain_id", r.DomainID.String(),
		"rnwl_no", r.Seq,
		"approver_id", r.ApproverID.String(),
	)
	s.notify(ctx, notification.NewEvent(notification.EventIPRenewalRequested, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(dom.ID), DomainName: dom.Name, Remarks: r.InitiatorRemarks},
		notification.Recipients{
			HOD: notification.Recipient(r.ApproverID),
			ARM: notification.Recipient(supervisors.ARM),
		}))
	return r, nil
}

// Approve hands the renewal to the domain's network operator. Nothing is
// written to the directory until the renewal is completed.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, id domain.IPRenewalID, cmd DecisionCommand) (_ *models.Renewal, err error) {
	ctx, end := s.startSpan(ctx, "Approve")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("approve", outcome(err), start)
	}()

	now := requestcontext.Now(ctx)
	r, err := s.store.Update(ctx, id,
		func(r *models.Renewal) error { return r.CanApprove(actor.ID, cmd.DomainID) },
		func(r *models.Renewal) { r.ApplyApproval(cmd.Remarks, now) },
	)
	if err != nil {
		return nil, wrapStoreErr(err, "approve ip renewal")
	}

	s.logAudit(ctx, "ip_renewal_approved", "ip_renewal_id", r.ID.String(), "ip_id", r.IPID.String())
	recipients := notification.Recipients{DRM: notification.Recipient(r.InitiatorID)}
	if dom, err := s.directory.GetDomain(ctx, r.DomainID); err == nil {
		recipients.NetOps = notification.Recipient(dom.NetOps)
	} else {
		s.logger.WarnContext(ctx, "could not resolve network operator for notification",
			"ip_renewal_id", r.ID.String(),
			"error", err,
		)
	}
	s.notify(ctx, notification.NewEvent(notification.EventIPRenewalApproved, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(r.DomainID), Remarks: r.ApproverRemarks}, recipients))
	return r, nil
}

func (s *Service) Reject(ctx context.Context, actor domain.Actor, id domain.IPRenewalID, cmd DecisionCommand) (_ *models.Renewal, err error) {
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
		return nil, wrapStoreErr(err, "reject ip renewal")
	}

	s.logAudit(ctx, "ip_renewal_rejected", "ip_renewal_id", r.ID.String(), "ip_id", r.IPID.String())
	s.notify(ctx, notification.NewEvent(notification.EventIPRenewalRejected, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(r.DomainID), Remarks: r.ApproverRemarks},
		notification.Recipients{DRM: notification.Recipient(r.InitiatorID)}))
	return r, nil
}

// Review resubmits a rejected renewal. The rejection remarks stay on record.
func (s *Service) Review(ctx context.Context, actor domain.Actor, id domain.IPRenewalID, cmd ReviewCommand) (_ *models.Renewal, err error) {
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
			r.ApplyReview(models.Revision{ApprovalProof: cmd.ApprovalProof, Remarks: cmd.Remarks}, now)
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "review ip renewal")
	}

	s.logAudit(ctx, "ip_renewal_reviewed", "ip_renewal_id", r.ID.String(), "ip_id", r.IPID.String())
	s.notify(ctx, notification.NewEvent(notification.EventIPRenewalReviewed, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(r.DomainID), Remarks: r.InitiatorRemarks},
		notification.Recipients{HOD: notification.Recipient(r.ApproverID)}))
	return r, nil
}

// Complete records the executed assignment and enqueues the directory update
// in the same transaction. The executor must be the network operator the
// directory currently lists for the domain.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, id domain.IPRenewalID, cmd CompleteCommand) (_ *models.Renewal, err error) {
	ctx, end := s.startSpan(ctx, "Complete")
	start := time.Now()
	defer func() {
		end(err)
		s.metrics.Observe("complete", outcome(err), start)
	}()

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "load ip renewal")
	}
	dom, err := s.directory.GetDomain(ctx, current.DomainID)
	if err != nil {
		return nil, upstream.ToDomain(err, "domain not found")
	}
	if actor.Role != domain.RoleNetOps || dom.NetOps != actor.ID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the domain's network operator can complete this renewal")
	}
	if _, err := s.identity.GetUser(ctx, domain.RoleNetOps, actor.ID); err != nil {
		return nil, upstream.ToDomain(err, "network operator not found")
	}
	addresses := strs.Unique(cmd.NewAddresses, canonicalAddress)
	if len(addresses) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "at least one new address is required")
	}
	if len(cmd.RenewalProof) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "a renewal proof is required")
	}

	now := requestcontext.Now(ctx)
	var updated *models.Renewal
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.Update(txCtx, id,
			func(r *models.Renewal) error { return r.CanComplete() },
			func(r *models.Renewal) {
				r.ApplyCompletion(models.Completion{
					ExecutorID:   actor.ID,
					NewAddresses: addresses,
					NewExpiry:    cmd.NewExpiry,
					RenewalProof: cmd.RenewalProof,
					Remarks:      cmd.Remarks,
				}, now)
			},
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
		return nil, wrapStoreErr(err, "complete ip renewal")
	}
	s.kick()
	s.metrics.DecOpen()

	s.logAudit(ctx, "ip_renewal_completed",
		"ip_renewal_id", updated.ID.String(),
		"ip_id", updated.IPID.String(),
		"addresses", len(updated.NewAddresses),
		"sync_status", updated.SyncStatus.String(),
	)
	s.notify(ctx, notification.NewEvent(notification.EventIPRenewalCompleted, actor, now,
		notification.Data{DomainID: domain.FlexibleInt(updated.DomainID), DomainName: dom.Name, Remarks: updated.ExecutorRemarks},
		notification.Recipients{
			DRM: notification.Recipient(updated.InitiatorID),
			HOD: notification.Recipient(updated.ApproverID),
		}))
	return updated, nil
}

// canonicalAddress folds equivalent spellings of one address, such as IPv6
// case or an IPv4-mapped form, so duplicates collapse. Unparseable input is
// returned unchanged.
func canonicalAddress(s string) string {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return s
	}
	return addr.Unmap().String()
}

// Resync re-arms a dead IP update. Only the executor may ask.
func (s *Service) Resync(ctx context.Context, actor domain.Actor, id domain.IPRenewalID) (_ *models.Renewal, err error) {
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
		err = s.outbox.Requeue(txCtx, outbox.AggregateIPRenewal, int64(r.ID))
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
		return nil, wrapStoreErr(err, "resync ip renewal")
	}
	s.kick()

	s.logAudit(ctx, "ip_renewal_resync_requested", "ip_renewal_id", updated.ID.String())
	return updated, nil
}

func (s *Service) enqueueUpdate(ctx context.Context, r *models.Renewal, now time.Time) error {
	payload := effects.IPUpdatePayload{
		IPID:         r.IPID,
		NewAddresses: r.NewAddresses,
		RenewalProof: r.RenewalProof,
	}
	if r.NewExpiry != nil {
		payload.NewExpiry = *r.NewExpiry
	}
	msg, err := effects.IPUpdateMessage(r.ID, payload, now)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, msg)
}

// RecordSync stores the relay's delivery outcome on the renewal.
func (s *Service) RecordSync(ctx context.Context, aggregateID int64, status domain.SyncStatus, reason string) error {
	id := domain.IPRenewalID(aggregateID)
	if err := s.store.SetSyncStatus(ctx, id, status, reason); err != nil {
		return err
	}
	s.metrics.IncSync(status.String())
	s.logAudit(ctx, "ip_renewal_sync_recorded",
		"ip_renewal_id", id.String(),
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
		s.notify(ctx, notification.NewEvent(notification.EventIPRenewed, domain.Actor{}, now, data,
			notification.Recipients{
				DRM:    notification.Recipient(r.InitiatorID),
				HOD:    notification.Recipient(r.ApproverID),
				NetOps: notification.Recipient(r.ExecutorID),
			}))
	case domain.SyncFailed:
		s.notify(ctx, notification.NewEvent(notification.EventSystemAlert, domain.Actor{}, now, data,
			notification.Recipients{NetOps: notification.Recipient(r.ExecutorID)}))
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id domain.IPRenewalID) (*models.Renewal, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "load ip renewal")
	}
	if !r.VisibleTo(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a party to this renewal")
	}
	return r, nil
}

// List returns the operator's own renewals, the approver's queue, or the
// network operators' execution queue.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]*models.Renewal, error) {
	out, err := s.store.ListByActor(ctx, actor.Role, actor.ID)
	if err != nil {
		return nil, wrapStoreErr(err, "list ip renewals")
	}
	return out, nil
}
