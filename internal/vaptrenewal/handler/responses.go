package handler

import (
	"encoding/base64"
	"time"

	"renewals/internal/vaptrenewal/models"
	"renewals/pkg/domain"
)

type VaptRenewalResponse struct {
	ID          domain.FlexibleInt `json:"vapt_rnwl_id"`
	DomainID    domain.FlexibleInt `json:"dm_id"`
	VaptID      domain.FlexibleInt `json:"vapt_id"`
	Seq         domain.FlexibleInt `json:"rnwl_no"`
	OldReport   string             `json:"old_vapt_report,omitempty"`
	NewReport   string             `json:"new_vapt_report"`
	NewExpiry   time.Time          `json:"new_vapt_expiry_date"`
	InitiatorID domain.FlexibleInt `json:"drm_empno_initiator"`
	DRMRemarks  string             `json:"drm_remarks"`
	ApproverID  domain.FlexibleInt `json:"hod_empno_approver"`
	HODRemarks  string             `json:"hod_remarks"`
	Approved    *bool              `json:"is_aprvd"`
	Status      string             `json:"status"`
	DecidedAt   *time.Time         `json:"aprvl_date,omitempty"`
	SyncStatus  string             `json:"sync_status"`
	SyncError   string             `json:"sync_error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func toResponse(r *models.Renewal) *VaptRenewalResponse {
	resp := &VaptRenewalResponse{
		ID:          domain.FlexibleInt(r.ID),
		DomainID:    domain.FlexibleInt(r.DomainID),
		VaptID:      domain.FlexibleInt(r.VaptID),
		Seq:         domain.FlexibleInt(r.Seq),
		NewReport:   base64.StdEncoding.EncodeToString(r.NewReport),
		NewExpiry:   r.NewExpiry,
		InitiatorID: domain.FlexibleInt(r.InitiatorID),
		DRMRemarks:  r.InitiatorRemarks,
		ApproverID:  domain.FlexibleInt(r.ApproverID),
		HODRemarks:  r.ApproverRemarks,
		Status:      r.Status.String(),
		DecidedAt:   r.DecidedAt,
		SyncStatus:  r.SyncStatus.String(),
		SyncError:   r.SyncError,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.PriorReport) > 0 {
		resp.OldReport = base64.StdEncoding.EncodeToString(r.PriorReport)
	}
	switch r.Status {
	case models.StatusApproved:
		v := true
		resp.Approved = &v
	case models.StatusRejected:
		v := false
		resp.Approved = &v
	}
	return resp
}

func toListResponse(rs []*models.Renewal) []*VaptRenewalResponse {
	out := make([]*VaptRenewalResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toResponse(r))
	}
	return out
}
