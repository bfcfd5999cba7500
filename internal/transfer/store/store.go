// Package store persists transfer requests in memory or Postgres.
package store

import (
	"renewals/internal/transfer/models"
	"renewals/pkg/platform/sentinel"
)

var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)

func clone(t *models.Transfer) *models.Transfer {
	if t == nil {
		return nil
	}
	c := *t
	if t.Proof != nil {
		c.Proof = append([]byte(nil), t.Proof...)
	}
	if t.ApprovedAt != nil {
		at := *t.ApprovedAt
		c.ApprovedAt = &at
	}
	return &c
}
