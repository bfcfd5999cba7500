// Package store persists IP renewals in memory or Postgres.
package store

import (
	"slices"
	"time"

	"renewals/internal/iprenewal/models"
	"renewals/pkg/platform/sentinel"
)

var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)

func clone(r *models.Renewal) *models.Renewal {
	if r == nil {
		return nil
	}
	c := *r
	c.PriorAddresses = slices.Clone(r.PriorAddresses)
	c.NewAddresses = slices.Clone(r.NewAddresses)
	c.ApprovalProof = slices.Clone(r.ApprovalProof)
	c.RenewalProof = slices.Clone(r.RenewalProof)
	c.DecidedAt = cloneTime(r.DecidedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.NewExpiry = cloneTime(r.NewExpiry)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
