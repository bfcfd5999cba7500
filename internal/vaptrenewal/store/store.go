// Package store persists VAPT renewals in memory or Postgres.
package store

import (
	"renewals/internal/vaptrenewal/models"
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
	c.PriorReport = append([]byte(nil), r.PriorReport...)
	c.NewReport = append([]byte(nil), r.NewReport...)
	if r.DecidedAt != nil {
		at := *r.DecidedAt
		c.DecidedAt = &at
	}
	return &c
}
