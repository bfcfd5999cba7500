//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"renewals/internal/vaptrenewal/models"
	"renewals/internal/vaptrenewal/store"
	"renewals/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "vapt_renewals"))
}

func (s *PostgresStoreSuite) renewal(seq int64) *models.Renewal {
	r, err := models.NewRenewal(models.Draft{
		DomainID: 10, VaptID: 7, Seq: seq, PriorReport: []byte("old"), NewReport: []byte("new"),
		NewExpiry: s.now.AddDate(1, 0, 0), InitiatorID: 42, ApproverID: 9,
	}, s.now)
	s.Require().NoError(err)
	return r
}

func (s *PostgresStoreSuite) TestConcurrentCreatesAdmitOne() {
	ctx := context.Background()
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.store.Create(ctx, s.renewal(1)) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), ok.Load())
}

func (s *PostgresStoreSuite) TestLifecycle() {
	ctx := context.Background()
	r := s.renewal(1)
	s.Require().NoError(s.store.Create(ctx, r))

	_, err := s.store.Update(ctx, r.ID,
		func(r *models.Renewal) error { return r.CanReject(9, 10) },
		func(r *models.Renewal) { r.ApplyRejection("unsigned", s.now) })
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(ctx, s.renewal(2)), store.ErrConflict, "rejected renewal still blocks")

	later := s.now.Add(time.Hour)
	_, err = s.store.Update(ctx, r.ID,
		func(r *models.Renewal) error { return r.CanReview(42, 10) },
		func(r *models.Renewal) { r.ApplyReview(models.Revision{NewReport: []byte("signed")}, later) })
	s.Require().NoError(err)

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
	s.Equal([]byte("signed"), got.NewReport)
	s.Equal([]byte("old"), got.PriorReport)
	s.Equal("unsigned", got.ApproverRemarks)
	s.True(later.Equal(got.CreatedAt))

	_, err = s.store.Update(ctx, r.ID,
		func(r *models.Renewal) error { return r.CanApprove(9, 10) },
		func(r *models.Renewal) { r.ApplyApproval("", s.now) })
	s.Require().NoError(err)

	n, err := s.store.CountByResource(ctx, 7)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	s.NoError(s.store.Create(ctx, s.renewal(n+1)))
}
