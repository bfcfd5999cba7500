package models

import (
	"time"

	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
)

// Status is the approval state of a VAPT renewal.
type Status string

const (
	StatusPending  Status = "PENDING_APPROVAL"
	StatusApproved Status = "APPROVED_BY_HOD"
	StatusRejected Status = "REJECTED_BY_HOD"
)

func (s Status) String() string {
	return string(s)
}

// Renewal proposes a fresh VAPT report and expiry for a domain's audit record.
//
// Invariants:
//   - at most one renewal per VaptID is not yet APPROVED_BY_HOD (store)
//   - Seq is monotonic per VaptID
//   - APPROVED_BY_HOD is terminal
type Renewal struct {
	ID               domain.VaptRenewalID
	DomainID         domain.DomainID
	VaptID           domain.VaptID
	Seq              int64
	PriorReport      []byte
	NewReport        []byte
	NewExpiry        time.Time
	InitiatorID      domain.EmployeeID
	InitiatorRemarks string
	ApproverID       domain.EmployeeID
	ApproverRemarks  string
	Status           Status
	DecidedAt        *time.Time
	SyncStatus       domain.SyncStatus
	SyncError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Draft carries the initiator's input for NewRenewal.
type Draft struct {
	DomainID    domain.DomainID
	VaptID      domain.VaptID
	Seq         int64
	PriorReport []byte
	NewReport   []byte
	NewExpiry   time.Time
	InitiatorID domain.EmployeeID
	ApproverID  domain.EmployeeID
	Remarks     string
}

func NewRenewal(d Draft, now time.Time) (*Renewal, error) {
	if d.DomainID.IsNil() || d.VaptID.IsNil() || d.InitiatorID.IsNil() || d.ApproverID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "domain, vapt, initiator and approver are required")
	}
	if len(d.NewReport) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a new vapt report is required")
	}
	if d.Seq < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "renewal sequence starts at 1")
	}
	return &Renewal{
		DomainID:         d.DomainID,
		VaptID:           d.VaptID,
		Seq:              d.Seq,
		PriorReport:      d.PriorReport,
		NewReport:        d.NewReport,
		NewExpiry:        d.NewExpiry,
		InitiatorID:      d.InitiatorID,
		InitiatorRemarks: domain.Remarks(d.Remarks),
		ApproverID:       d.ApproverID,
		ApproverRemarks:  domain.NoRemarks,
		Status:           StatusPending,
		SyncStatus:       domain.SyncNone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsOpen reports whether the renewal still blocks a new one for the same VAPT.
func (r *Renewal) IsOpen() bool {
	return r.Status != StatusApproved
}

func (r *Renewal) checkApprover(actor domain.EmployeeID, domainID domain.DomainID) error {
	if actor != r.ApproverID {
		return dErrors.New(dErrors.CodeForbidden, "only the assigned approver can decide this renewal")
	}
	if domainID != r.DomainID {
		return dErrors.New(dErrors.CodeBadRequest, "domain does not match the renewal")
	}
	return nil
}

// CanApprove allows approval of any renewal that is not already approved.
func (r *Renewal) CanApprove(actor domain.EmployeeID, domainID domain.DomainID) error {
	if err := r.checkApprover(actor, domainID); err != nil {
		return err
	}
	if r.Status == StatusApproved {
		return dErrors.New(dErrors.CodeConflict, "renewal is already approved")
	}
	return nil
}

func (r *Renewal) ApplyApproval(remarks string, now time.Time) {
	r.Status = StatusApproved
	r.ApproverRemarks = domain.Remarks(remarks)
	r.DecidedAt = &now
	r.SyncStatus = domain.SyncPending
	r.SyncError = ""
	r.UpdatedAt = now
}

// CanReject allows rejection only while no decision has been recorded.
func (r *Renewal) CanReject(actor domain.EmployeeID, domainID domain.DomainID) error {
	if err := r.checkApprover(actor, domainID); err != nil {
		return err
	}
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "renewal has already been "+decision(r.Status))
	}
	return nil
}

func (r *Renewal) ApplyRejection(remarks string, now time.Time) {
	r.Status = StatusRejected
	r.ApproverRemarks = domain.Remarks(remarks)
	r.DecidedAt = &now
	r.UpdatedAt = now
}

// Revision holds the optional fields an initiator may change on resubmission.
type Revision struct {
	NewReport []byte
	NewExpiry *time.Time
	Remarks   string
}

// CanReview allows the initiator to resubmit a rejected renewal.
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

// ApplyReview starts a new approval cycle. The approver's rejection remarks
// stay on the record.
func (r *Renewal) ApplyReview(rev Revision, now time.Time) {
	if len(rev.NewReport) > 0 {
		r.NewReport = rev.NewReport
	}
	if rev.NewExpiry != nil {
		r.NewExpiry = *rev.NewExpiry
	}
	if rev.Remarks != "" {
		r.InitiatorRemarks = rev.Remarks
	}
	r.Status = StatusPending
	r.DecidedAt = nil
	r.CreatedAt = now
	r.UpdatedAt = now
}

// CanResync allows the approver to retry a failed directory update.
func (r *Renewal) CanResync(actor domain.EmployeeID) error {
	if actor != r.ApproverID {
		return dErrors.New(dErrors.CodeForbidden, "only the approver can resync this renewal")
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

func (r *Renewal) VisibleTo(actor domain.EmployeeID) bool {
	return actor == r.InitiatorID || actor == r.ApproverID
}

func decision(s Status) string {
	if s == StatusApproved {
		return "approved"
	}
	return "rejected"
}
