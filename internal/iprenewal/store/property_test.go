//go:build property

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"renewals/internal/iprenewal/models"
	"renewals/internal/iprenewal/store"
	"renewals/pkg/domain"
)

const (
	opCreate = iota
	opApprove
	opReject
	opReview
	opComplete
)

// TestRenewalStateMachine applies arbitrary operation sequences to one IP.
func TestRenewalStateMachine(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	run := func(ops []int, check func(before, after []*models.Renewal) bool) bool {
		ctx := context.Background()
		s := store.NewInMemory()
		for _, op := range ops {
			before, _ := s.ListByResource(ctx, 3)
			switch op {
			case opCreate:
				n, _ := s.CountByResource(ctx, 3)
				r, err := models.NewRenewal(models.Draft{
					DomainID: 10, IPID: 3, Seq: n + 1, ApprovalProof: []byte("p"),
					InitiatorID: 42, ApproverID: 9,
				}, now)
				if err != nil {
					return false
				}
				_ = s.Create(ctx, r)
			default:
				for _, r := range before {
					_, _ = s.Update(ctx, r.ID, guard(op), apply(op, now))
				}
			}
			after, _ := s.ListByResource(ctx, 3)
			if !check(before, after) {
				return false
			}
		}
		return true
	}

	ops := gen.SliceOf(gen.IntRange(opCreate, opComplete))

	// Property: at most one renewal per IP is not RENEWED_BY_NETOPS.
	properties.Property("one open renewal per ip", prop.ForAll(
		func(ops []int) bool {
			return run(ops, func(_, after []*models.Renewal) bool {
				open := 0
				for _, r := range after {
					if r.IsOpen() {
						open++
					}
				}
				return open <= 1
			})
		},
		ops,
	))

	// Property: a renewal reaches RENEWED_BY_NETOPS only from
	// APPROVED_BY_HOD, and never leaves it.
	properties.Property("completion follows approval and is terminal", prop.ForAll(
		func(ops []int) bool {
			return run(ops, func(before, after []*models.Renewal) bool {
				prior := make(map[domain.IPRenewalID]models.Status, len(before))
				for _, r := range before {
					prior[r.ID] = r.Status
				}
				for _, r := range after {
					was, existed := prior[r.ID]
					if !existed {
						continue
					}
					if was == models.StatusRenewed && r.Status != models.StatusRenewed {
						return false
					}
					if r.Status == models.StatusRenewed && was != models.StatusRenewed && was != models.StatusApproved {
						return false
					}
				}
				return true
			})
		},
		ops,
	))

	properties.TestingRun(t)
}

func guard(op int) func(*models.Renewal) error {
	switch op {
	case opApprove:
		return func(r *models.Renewal) error { return r.CanApprove(9, 10) }
	case opReject:
		return func(r *models.Renewal) error { return r.CanReject(9, 10) }
	case opReview:
		return func(r *models.Renewal) error { return r.CanReview(42, 10) }
	default:
		return func(r *models.Renewal) error { return r.CanComplete() }
	}
}

func apply(op int, now time.Time) func(*models.Renewal) {
	switch op {
	case opApprove:
		return func(r *models.Renewal) { r.ApplyApproval("", now) }
	case opReject:
		return func(r *models.Renewal) { r.ApplyRejection("", now) }
	case opReview:
		return func(r *models.Renewal) { r.ApplyReview(models.Revision{}, now) }
	default:
		return func(r *models.Renewal) {
			r.ApplyCompletion(models.Completion{
				ExecutorID: 77, NewAddresses: []string{"10.0.0.2"}, NewExpiry: now, RenewalProof: []byte("p"),
			}, now)
		}
	}
}
