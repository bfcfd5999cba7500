package models

import (
	"time"

	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
)

// Transfer is a request to hand a domain from one operator to another.
//
// Invariants:
//   - FromID and ToID differ
//   - at most one unapproved transfer exists per domain (enforced by the store)
//   - approval happens once, by ApproverID, and is immutable afterwards
type Transfer struct {
	ID              domain.TransferID
	DomainID        domain.DomainID
	FromID          domain.EmployeeID
	ToID            domain.EmployeeID
	ApproverID      domain.EmployeeID
	Reason          string
	Proof           []byte
	Approved        bool
	ApproverRemarks string
	ApprovedAt      *time.Time
	SyncStatus      domain.SyncStatus
	SyncError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewTransfer builds an open transfer.
func NewTransfer(domainID domain.DomainID, from, to, approver domain.EmployeeID, reason string, proof []byte, now time.Time) (*Transfer, error) {
	if from == to {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transfer source and destination must differ")
	}
	if domainID.IsNil() || from.IsNil() || to.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "domain, source and destination are required")
	}
	return &Transfer{
		DomainID:        domainID,
		FromID:          from,
		ToID:            to,
		ApproverID:      approver,
		Reason:          domain.Remarks(reason),
		Proof:           proof,
		ApproverRemarks: domain.NoRemarks,
		SyncStatus:      domain.SyncNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsOpen reports whether the transfer still awaits approval.
func (t *Transfer) IsOpen() bool {
	return !t.Approved
}

// CanApprove checks that approver is the assigned approver and the transfer is
// still open.
func (t *Transfer) CanApprove(approver domain.EmployeeID) error {
	if approver != t.ApproverID {
		return dErrors.New(dErrors.CodeForbidden, "only the assigned approver can approve this transfer")
	}
	if t.Approved {
		return dErrors.New(dErrors.CodeConflict, "transfer is already approved")
	}
	return nil
}

// ApplyApproval records the approval. The operator change is pending until the
// directory confirms it.
func (t *Transfer) ApplyApproval(remarks string, now time.Time) {
	t.Approved = true
	t.ApproverRemarks = domain.Remarks(remarks)
	if t.ApprovedAt == nil {
		t.ApprovedAt = &now
	}
	t.SyncStatus = domain.SyncPending
	t.SyncError = ""
	t.UpdatedAt = now
}

// CanResync allows the approver to retry a failed directory update.
func (t *Transfer) CanResync(actor domain.EmployeeID) error {
	if actor != t.ApproverID {
		return dErrors.New(dErrors.CodeForbidden, "only the approver can resync this transfer")
	}
	if t.SyncStatus != domain.SyncFailed {
		return dErrors.New(dErrors.CodeConflict, "transfer is not in a failed sync state")
	}
	return nil
}

func (t *Transfer) ApplyResync(now time.Time) {
	t.SyncStatus = domain.SyncPending
	t.SyncError = ""
	t.UpdatedAt = now
}

// VisibleTo reports whether actor is a party to the transfer.
func (t *Transfer) VisibleTo(actor domain.EmployeeID) bool {
	return actor == t.FromID || actor == t.ToID || actor == t.ApproverID
}
