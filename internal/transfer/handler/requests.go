package handler

import (
	"encoding/base64"

	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/validation"
)

// CreateTransferRequest is the body of POST /transfers.
type CreateTransferRequest struct {
	DomainID domain.FlexibleInt `json:"dm_id" validate:"required,gt=0"`
	FromID   domain.FlexibleInt `json:"trns_frm" validate:"required,gt=0"`
	ToID     domain.FlexibleInt `json:"trns_to" validate:"required,gt=0"`
	Reason   string             `json:"rsn_for_trns" validate:"max=2000"`
	Proof    string             `json:"prf_upload" validate:"required,base64"`

	proof []byte
}

// Validate implements httputil.Validatable.
func (r *CreateTransferRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	proof, err := base64.StdEncoding.DecodeString(r.Proof)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "prf_upload must be a valid base64 encoded string")
	}
	r.proof = proof
	return nil
}

// ApproveTransferRequest is the body of PUT /transfers/{id}/approve.
type ApproveTransferRequest struct {
	Remarks string `json:"hod_remarks" validate:"max=2000"`
}

func (r *ApproveTransferRequest) Validate() error {
	return validation.Struct(r)
}
