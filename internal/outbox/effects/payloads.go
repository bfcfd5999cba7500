// Package effects binds outbox topics to resource directory writes and feeds
// delivery outcomes back to the owning request family.
package effects

import (
	"time"

	"renewals/internal/outbox"
	"renewals/pkg/domain"
)

// DomainOperatorPayload reassigns a domain's operator after a transfer.
type DomainOperatorPayload struct {
	DomainID   domain.DomainID   `json:"domain_id"`
	OperatorID domain.EmployeeID `json:"drm_empno"`
}

// VaptUpdatePayload pushes an approved VAPT renewal.
type VaptUpdatePayload struct {
	VaptID    domain.VaptID `json:"vapt_id"`
	NewExpiry time.Time     `json:"new_expiry_date"`
	NewReport []byte        `json:"new_vapt_report"`
}

// IPUpdatePayload pushes a completed IP renewal.
type IPUpdatePayload struct {
	IPID         domain.IPID `json:"ip_id"`
	NewAddresses []string    `json:"new_ip_address"`
	NewExpiry    time.Time   `json:"new_expiry_date"`
	RenewalProof []byte      `json:"rnwl_pdf"`
}

func DomainOperatorMessage(id domain.TransferID, p DomainOperatorPayload, now time.Time) (outbox.Message, error) {
	return outbox.NewMessage(outbox.TopicDomainOperator, outbox.AggregateTransfer, int64(id), p, now)
}

func VaptUpdateMessage(id domain.VaptRenewalID, p VaptUpdatePayload, now time.Time) (outbox.Message, error) {
	return outbox.NewMessage(outbox.TopicVaptUpdate, outbox.AggregateVaptRenewal, int64(id), p, now)
}

func IPUpdateMessage(id domain.IPRenewalID, p IPUpdatePayload, now time.Time) (outbox.Message, error) {
	return outbox.NewMessage(outbox.TopicIPUpdate, outbox.AggregateIPRenewal, int64(id), p, now)
}
