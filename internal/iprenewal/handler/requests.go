package handler

import (
	"encoding/base64"
	"time"

	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/validation"
)

// CreateIPRenewalRequest is the body of POST /renewals/ip.
type CreateIPRenewalRequest struct {
	DomainID      domain.FlexibleInt `json:"dm_id" validate:"required,gt=0"`
	IPID          domain.FlexibleInt `json:"ip_id" validate:"required,gt=0"`
	ApprovalProof string             `json:"aprvl_pdf" validate:"required,base64"`
	Remarks       string             `json:"drm_remarks" validate:"max=2000"`

	proof []byte
}

func (r *CreateIPRenewalRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	proof, err := decodeArtifact(r.ApprovalProof, "aprvl_pdf")
	if err != nil {
		return err
	}
	r.proof = proof
	return nil
}

type DecisionRequest struct {
	DomainID domain.FlexibleInt `json:"dm_id" validate:"required,gt=0"`
	Remarks  string             `json:"hod_remarks" validate:"max=2000"`
}

func (r *DecisionRequest) Validate() error {
	return validation.Struct(r)
}

// ReviewRequest resubmits a rejected renewal, optionally with a new proof.
type ReviewRequest struct {
	DomainID      domain.FlexibleInt `json:"dm_id" validate:"required,gt=0"`
	ApprovalProof string             `json:"aprvl_pdf" validate:"omitempty,base64"`
	Remarks       string             `json:"drm_remarks" validate:"max=2000"`

	proof []byte
}

func (r *ReviewRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.ApprovalProof == "" {
		return nil
	}
	proof, err := decodeArtifact(r.ApprovalProof, "aprvl_pdf")
	if err != nil {
		return err
	}
	r.proof = proof
	return nil
}

// CompleteRequest is the network operator's record of the executed renewal.
type CompleteRequest struct {
	NewAddresses []string  `json:"new_ip_address" validate:"required,min=1,dive,ip"`
	NewExpiry    time.Time `json:"new_expiry_date" validate:"required"`
	RenewalProof string    `json:"rnwl_pdf" validate:"required,base64"`
	Remarks      string    `json:"netops_remarks" validate:"max=2000"`

	proof []byte
}

func (r *CompleteRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	proof, err := decodeArtifact(r.RenewalProof, "rnwl_pdf")
	if err != nil {
		return err
	}
	r.proof = proof
	return nil
}

func decodeArtifact(s, field string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be a valid base64 encoded string")
	}
	return b, nil
}
