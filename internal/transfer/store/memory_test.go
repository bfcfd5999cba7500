package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"renewals/internal/transfer/models"
	"renewals/internal/transfer/store"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *store.InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newTransfer(domainID domain.DomainID, from, to domain.EmployeeID) *models.Transfer {
	t, err := models.NewTransfer(domainID, from, to, 7, "reorg", []byte("proof"), s.now)
	s.Require().NoError(err)
	return t
}

func (s *InMemoryStoreSuite) TestCreateAssignsIDs() {
	a := s.newTransfer(1, 42, 43)
	b := s.newTransfer(2, 42, 44)
	s.Require().NoError(s.store.Create(context.Background(), a))
	s.Require().NoError(s.store.Create(context.Background(), b))
	s.Equal(domain.TransferID(1), a.ID)
	s.Equal(domain.TransferID(2), b.ID)
}

func (s *InMemoryStoreSuite) TestOneOpenTransferPerDomain() {
	ctx := context.Background()
	first := s.newTransfer(1, 42, 43)
	s.Require().NoError(s.store.Create(ctx, first))

	s.Run("second open transfer conflicts", func() {
		s.ErrorIs(s.store.Create(ctx, s.newTransfer(1, 42, 44)), store.ErrConflict)
	})

	s.Run("approval frees the slot", func() {
		_, err := s.store.Update(ctx, first.ID,
			func(t *models.Transfer) error { return t.CanApprove(7) },
			func(t *models.Transfer) { t.ApplyApproval("", s.now) })
		s.Require().NoError(err)
		s.NoError(s.store.Create(ctx, s.newTransfer(1, 43, 44)))
	})
}

func (s *InMemoryStoreSuite) TestConcurrentCreatesAdmitOne() {
	ctx := context.Background()
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(to domain.EmployeeID) {
			defer wg.Done()
			if err := s.store.Create(ctx, s.newTransfer(5, 42, to)); err == nil {
				ok.Add(1)
			}
		}(domain.EmployeeID(100 + i))
	}
	wg.Wait()
	s.Equal(int32(1), ok.Load())
}

func (s *InMemoryStoreSuite) TestUpdate() {
	ctx := context.Background()
	t := s.newTransfer(1, 42, 43)
	s.Require().NoError(s.store.Create(ctx, t))

	s.Run("failed validation leaves the record untouched", func() {
		_, err := s.store.Update(ctx, t.ID,
			func(t *models.Transfer) error { return t.CanApprove(99) },
			func(t *models.Transfer) { t.ApplyApproval("", s.now) })
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		stored, err := s.store.FindByID(ctx, t.ID)
		s.Require().NoError(err)
		s.False(stored.Approved)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Update(ctx, 99, func(*models.Transfer) error { return nil }, func(*models.Transfer) {})
		s.ErrorIs(err, store.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		stored, err := s.store.FindByID(ctx, t.ID)
		s.Require().NoError(err)
		stored.Proof[0] = 'X'
		again, err := s.store.FindByID(ctx, t.ID)
		s.Require().NoError(err)
		s.Equal([]byte("proof"), again.Proof)
	})
}

func (s *InMemoryStoreSuite) TestSetSyncStatus() {
	ctx := context.Background()
	t := s.newTransfer(1, 42, 43)
	s.Require().NoError(s.store.Create(ctx, t))

	s.Require().NoError(s.store.SetSyncStatus(ctx, t.ID, domain.SyncFailed, "boom"))
	stored, err := s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(domain.SyncFailed, stored.SyncStatus)
	s.Equal("boom", stored.SyncError)

	s.ErrorIs(s.store.SetSyncStatus(ctx, 99, domain.SyncSynced, ""), store.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListByActor() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newTransfer(1, 42, 43)))
	s.Require().NoError(s.store.Create(ctx, s.newTransfer(2, 44, 42)))
	s.Require().NoError(s.store.Create(ctx, s.newTransfer(3, 44, 45)))

	drm, err := s.store.ListByActor(ctx, domain.RoleDRM, 42)
	s.Require().NoError(err)
	s.Len(drm, 2)
	s.Equal(domain.TransferID(1), drm[0].ID)

	hod, err := s.store.ListByActor(ctx, domain.RoleHOD, 7)
	s.Require().NoError(err)
	s.Len(hod, 3)

	ed, err := s.store.ListByActor(ctx, domain.RoleED, 7)
	s.Require().NoError(err)
	s.Empty(ed)
}
