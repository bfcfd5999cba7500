package handler

import (
	"encoding/base64"
	"time"

	"renewals/internal/iprenewal/models"
	"renewals/pkg/domain"
)

type IPRenewalResponse struct {
	ID            domain.FlexibleInt  `json:"ip_rnwl_id"`
	DomainID      domain.FlexibleInt  `json:"dm_id"`
	IPID          domain.FlexibleInt  `json:"ip_id"`
	Seq           domain.FlexibleInt  `json:"rnwl_no"`
	PrevAddresses []string            `json:"prev_ip_address"`
	NewAddresses  []string            `json:"new_ip_address,omitempty"`
	ApprovalProof string              `json:"aprvl_pdf"`
	RenewalProof  string              `json:"rnwl_pdf,omitempty"`
	NewExpiry     *time.Time          `json:"new_expiry_date,omitempty"`
	InitiatorID   domain.FlexibleInt  `json:"drm_empno_initiator"`
	DRMRemarks    string              `json:"drm_remarks"`
	ApproverID    domain.FlexibleInt  `json:"hod_empno_approver"`
	HODRemarks    string              `json:"hod_remarks"`
	ExecutorID    *domain.FlexibleInt `json:"netops_empno,omitempty"`
	NetOpsRemarks string              `json:"netops_remarks"`
	Approved      *bool               `json:"is_aprvd"`
	Status        string              `json:"status"`
	DecidedAt     *time.Time          `json:"aprvl_date,omitempty"`
	CompletedAt   *time.Time          `json:"rnwl_date,omitempty"`
	SyncStatus    string              `json:"sync_status"`
	SyncError     string              `json:"sync_error,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toResponse(r *models.Renewal) *IPRenewalResponse {
	resp := &IPRenewalResponse{
		ID:            domain.FlexibleInt(r.ID),
		DomainID:      domain.FlexibleInt(r.DomainID),
		IPID:          domain.FlexibleInt(r.IPID),
		Seq:           domain.FlexibleInt(r.Seq),
		PrevAddresses: r.PriorAddresses,
		NewAddresses:  r.NewAddresses,
		ApprovalProof: base64.StdEncoding.EncodeToString(r.ApprovalProof),
		NewExpiry:     r.NewExpiry,
		InitiatorID:   domain.FlexibleInt(r.InitiatorID),
		DRMRemarks:    r.InitiatorRemarks,
		ApproverID:    domain.FlexibleInt(r.ApproverID),
		HODRemarks:    r.ApproverRemarks,
		NetOpsRemarks: r.ExecutorRemarks,
		Status:        r.Status.String(),
		DecidedAt:     r.DecidedAt,
		CompletedAt:   r.CompletedAt,
		SyncStatus:    r.SyncStatus.String(),
		SyncError:     r.SyncError,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if resp.PrevAddresses == nil {
		resp.PrevAddresses = []string{}
	}
	if len(r.RenewalProof) > 0 {
		resp.RenewalProof = base64.StdEncoding.EncodeToString(r.RenewalProof)
	}
	if !r.ExecutorID.IsNil() {
		executor := domain.FlexibleInt(r.ExecutorID)
		resp.ExecutorID = &executor
	}
	switch r.Status {
	case models.StatusApproved, models.StatusRenewed:
		v := true
		resp.Approved = &v
	case models.StatusRejected:
		v := false
		resp.Approved = &v
	}
	return resp
}

func toListResponse(rs []*models.Renewal) []*IPRenewalResponse {
	out := make([]*IPRenewalResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toResponse(r))
	}
	return out
}
