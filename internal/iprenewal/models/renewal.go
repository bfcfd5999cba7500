package models

import (
	"slices"
	"time"

	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
)

type Status string

const (
	StatusPending  Status = "PENDING_APPROVAL"
	StatusApproved Status = "APPROVED_BY_HOD"
	StatusRejected Status = "REJECTED_BY_HOD"
	StatusRenewed  Status = "RENEWED_BY_NETOPS"
)

func (s Status) String() string {
	return string(s)
}

// Renewal proposes renewing a domain's IP assignment. The initiator attaches
// the approval proof; the executor later records the new addresses.
//
// Invariants:
//   - at most one renewal per IPID is not yet RENEWED_BY_NETOPS (store)
//   - RENEWED_BY_NETOPS is terminal
//   - Complete is reachable only from APPROVED_BY_HOD
type Renewal struct {
	ID               domain.IPRenewalID
	DomainID         domain.DomainID
	IPID             domain.IPID
	Seq              int64
	PriorAddresses   []string
	NewAddresses     []string
	ApprovalProof    []byte
	RenewalProof     []byte
	NewExpiry        *time.Time
	InitiatorID      domain.EmployeeID
	InitiatorRemarks string
	ApproverID       domain.EmployeeID
	ApproverRemarks  string
	ExecutorID       domain.EmployeeID
	ExecutorRemarks  string
	Status           Status
	DecidedAt        *time.Time
	CompletedAt      *time.Time
	SyncStatus       domain.SyncStatus
	SyncError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Draft struct {
	DomainID       domain.DomainID
	IPID           domain.IPID
	Seq            int64
	PriorAddresses []string
	ApprovalProof  []byte
	InitiatorID    domain.EmployeeID
	ApproverID     domain.EmployeeID
	Remarks        string
}

func NewRenewal(d Draft, now time.Time) (*Renewal, error) {
	if d.DomainID.IsNil() || d.IPID.IsNil() || d.InitiatorID.IsNil() || d.ApproverID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "domain, ip, initiator and approver are required")
	}
	if len(d.ApprovalProof) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "an approval proof is required")
	}
	if d.Seq < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "renewal sequence starts at 1")
	}
	prior := slices.Clone(d.PriorAddresses)
	if prior == nil {
		prior = []string{}
	}
	return &Renewal{
		DomainID:         d.DomainID,
		IPID:             d.IPID,
		Seq:              d.Seq,
		PriorAddresses:   prior,
		ApprovalProof:    d.ApprovalProof,
		InitiatorID:      d.InitiatorID,
		InitiatorRemarks: domain.Remarks(d.Remarks),
		ApproverID:       d.ApproverID,
		ApproverRemarks:  domain.NoRemarks,
		ExecutorRemarks:  domain.NoRemarks,
		Status:           StatusPending,
		SyncStatus:       domain.SyncNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsOpen reports whether the renewal still blocks a new one for the same IP.
func (r *Renewal) IsOpen() bool {
	return r.Status != StatusRenewed
}

func (r *Renewal) canDecide(actor domain.EmployeeID, domainID domain.DomainID) error {
	if actor != r.ApproverID {
		return dErrors.New(dErrors.CodeForbidden, "only the assigned approver can decide this renewal")
	}
	if domainID != r.DomainID {
		return dErrors.New(dErrors.CodeBadRequest, "domain does not match the renewal")
	}
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "renewal is not pending approval")
	}
	return nil
}

func (r *Renewal) CanApprove(actor domain.EmployeeID, domainID domain.DomainID) error {
	return r.canDecide(actor, domainID)
}

func (r *Renewal) CanReject(actor domain.EmployeeID, domainID domain.DomainID) error {
	return r.canDecide(actor, domainID)
}

func (r *Renewal) ApplyApproval(remarks string, now time.Time) {
	r.Status = StatusApproved
	r.ApproverRemarks = domain.Remarks(remarks)
	r.DecidedAt = &now
	r.UpdatedAt = now
}

func (r *Renewal) ApplyRejection(remarks string, now time.Time) {
	r.Status = StatusRejected
	r.ApproverRemarks = domain.Remarks(remarks)
	r.DecidedAt = &now
	r.UpdatedAt = now
}

// Revision holds what an initiator may change when resubmitting.
type Revision struct {
	ApprovalProof []byte
	Remarks       string
}

func (r *Renewal) CanReview(actor domain.EmployeeID, domainID domain.DomainID) error {
	if actor != r.InitiatorID {
		return dErrors.New(dErrors.CodeForbidden, "only the initiator can resubmit this renewal")
	}
	if domainID != r.DomainID {
		return dErrors.New(dErrors.CodeBadRequest, "domain does not match the renewal")
	}
	if r.Status != StatusRejected {
		return dErrors.New(dErrors.CodeConflict, "only rejected renewals can be resubmitted")
	}
	return nil
}

// ApplyReview returns the renewal to the approver as a fresh request. The
// rejection remarks are kept for audit.
func (r *Renewal) ApplyReview(rev Revision, now time.Time) {
	if len(rev.ApprovalProof) > 0 {
		r.ApprovalProof = rev.ApprovalProof
	}
	if rev.Remarks != "" {
		r.InitiatorRemarks = rev.Remarks
	}
	r.Status = StatusPending
	r.DecidedAt = nil
	r.CreatedAt = now
	r.UpdatedAt = now
}

// Completion is the executor's record of the applied assignment.
type Completion struct {
	ExecutorID   domain.EmployeeID
	NewAddresses []string
	NewExpiry    time.Time
	RenewalProof []byte
	Remarks      string
}

func (r *Renewal) CanComplete() error {
	if r.Status != StatusApproved {
		return dErrors.New(dErrors.CodeConflict, "only approved renewals can be completed")
	}
	return nil
}

func (r *Renewal) ApplyCompletion(c Completion, now time.Time) {
	expiry := c.NewExpiry
	r.Status = StatusRenewed
	r.ExecutorID = c.ExecutorID
	r.ExecutorRemarks = domain.Remarks(c.Remarks)
	r.NewAddresses = slices.Clone(c.NewAddresses)
	r.NewExpiry = &expiry
	r.RenewalProof = c.RenewalProof
	r.CompletedAt = &now
	r.SyncStatus = domain.SyncPending
	r.SyncError = ""
	r.UpdatedAt = now
}

// CanResync allows the executor who completed the renewal to retry a failed
// directory update.
func (r *Renewal) CanResync(actor domain.EmployeeID) error {
	if actor != r.ExecutorID {
		return dErrors.New(dErrors.CodeForbidden, "only the executor can resync this renewal")
	}
	if r.SyncStatus != domain.SyncFailed {
		return dErrors.New(dErrors.CodeConflict, "renewal is not in a failed sync state")
	}
	return nil
}

func (r *Renewal) ApplyResync(now time.Time) {
	r.SyncStatus = domain.SyncPending
	r.SyncError = ""
	r.UpdatedAt = now
}

// VisibleTo admits the parties to the renewal, and any NETOPS operator once the
// renewal has reached the execution queue.
func (r *Renewal) VisibleTo(actor domain.Actor) bool {
	switch actor.ID {
	case r.InitiatorID, r.ApproverID:
		return true
	}
	if !r.ExecutorID.IsNil() && actor.ID == r.ExecutorID {
		return true
	}
	return actor.Role == domain.RoleNetOps && (r.Status == StatusApproved || r.Status == StatusRenewed)
}
