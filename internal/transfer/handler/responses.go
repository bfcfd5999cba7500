package handler

import (
	"encoding/base64"
	"time"

	"renewals/internal/transfer/models"
	"renewals/pkg/domain"
)

// TransferResponse is the wire view of a transfer. Ids are encoded as strings.
type TransferResponse struct {
	ID              domain.FlexibleInt `json:"tt_id"`
	DomainID        domain.FlexibleInt `json:"dm_id"`
	FromID          domain.FlexibleInt `json:"trns_frm"`
	ToID            domain.FlexibleInt `json:"trns_to"`
	ApproverID      domain.FlexibleInt `json:"hod_empno"`
	Reason          string             `json:"rsn_for_trns"`
	Proof           string             `json:"prf_upload,omitempty"`
	Approved        bool               `json:"hod_approved"`
	ApproverRemarks string             `json:"hod_remarks"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	SyncStatus      string             `json:"sync_status"`
	SyncError       string             `json:"sync_error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func toResponse(t *models.Transfer) *TransferResponse {
	resp := &TransferResponse{
		ID:              domain.FlexibleInt(t.ID),
		DomainID:        domain.FlexibleInt(t.DomainID),
		FromID:          domain.FlexibleInt(t.FromID),
		ToID:            domain.FlexibleInt(t.ToID),
		ApproverID:      domain.FlexibleInt(t.ApproverID),
		Reason:          t.Reason,
		Approved:        t.Approved,
		ApproverRemarks: t.ApproverRemarks,
		ApprovedAt:      t.ApprovedAt,
		SyncStatus:      t.SyncStatus.String(),
		SyncError:       t.SyncError,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if len(t.Proof) > 0 {
		resp.Proof = base64.StdEncoding.EncodeToString(t.Proof)
	}
	return resp
}

func toListResponse(ts []*models.Transfer) []*TransferResponse {
	out := make([]*TransferResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, toResponse(t))
	}
	return out
}
