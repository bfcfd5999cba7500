package handler

import (
	"encoding/base64"
	"time"

	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/validation"
)

// CreateVaptRenewalRequest is the body of POST /renewals/vapt.
type CreateVaptRenewalRequest struct {
	DomainID  domain.FlexibleInt `json:"dm_id" validate:"required,gt=0"`
	VaptID    domain.FlexibleInt `json:"vapt_id" validate:"required,gt=0"`
	NewReport string             `json:"new_vapt_report" validate:"required,base64"`
	NewExpiry time.Time          `json:"new_vapt_expiry_date" validate:"required"`
	Remarks   string             `json:"drm_remarks" validate:"max=2000"`

	report []byte
}

func (r *CreateVaptRenewalRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	report, err := decodeArtifact(r.NewReport, "new_vapt_report")
	if err != nil {
		return err
	}
	r.report = report
	return nil
}

// DecisionRequest is the body of the approve and reject actions.
type DecisionRequest struct {
	DomainID domain.FlexibleInt `json:"dm_id" validate:"required,gt=0"`
	Remarks  string             `json:"hod_remarks" validate:"max=2000"`
}

func (r *DecisionRequest) Validate() error {
	return validation.Struct(r)
}

// ReviewRequest resubmits a rejected renewal. Omitted fields keep their values.
type ReviewRequest struct {
	DomainID  domain.FlexibleInt `json:"dm_id" validate:"required,gt=0"`
	NewReport string             `json:"new_vapt_report" validate:"omitempty,base64"`
	NewExpiry *time.Time         `json:"new_vapt_expiry_date"`
	Remarks   string             `json:"drm_remarks" validate:"max=2000"`

	report []byte
}

func (r *ReviewRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.NewReport == "" {
		return nil
	}
	report, err := decodeArtifact(r.NewReport, "new_vapt_report")
	if err != nil {
		return err
	}
	r.report = report
	return nil
}

func decodeArtifact(s, field string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be a valid base64 encoded string")
	}
	return b, nil
}
