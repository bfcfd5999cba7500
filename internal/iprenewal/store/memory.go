package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"renewals/internal/iprenewal/models"
	"renewals/pkg/domain"
	"renewals/pkg/platform/tx"
	"renewals/pkg/requestcontext"
)

// InMemoryStore keeps renewals in a map guarded by one mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	serial  tx.Serial
	nextID  int64
	records map[domain.IPRenewalID]*models.Renewal
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.IPRenewalID]*models.Renewal)}
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return s.serial.Run(ctx, fn)
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Renewal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.IPID == r.IPID && existing.IsOpen() {
			return fmt.Errorf("open renewal for ip %d: %w", r.IPID, ErrConflict)
		}
	}
	s.nextID++
	r.ID = domain.IPRenewalID(s.nextID)
	s.records[r.ID] = clone(r)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.IPRenewalID) (*models.Renewal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("ip renewal %d: %w", id, ErrNotFound)
	}
	return clone(r), nil
}

func (s *InMemoryStore) ListByResource(_ context.Context, ipID domain.IPID) ([]*models.Renewal, error) {
	return s.filter(func(r *models.Renewal) bool { return r.IPID == ipID }), nil
}

func (s *InMemoryStore) CountByResource(_ context.Context, ipID domain.IPID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.records {
		if r.IPID == ipID {
			n++
		}
	}
	return n, nil
}

// ListByActor returns the DRM's own requests, the HOD's approval queue, or
// for NETOPS every renewal that is approved or already executed.
func (s *InMemoryStore) ListByActor(_ context.Context, role domain.Role, id domain.EmployeeID) ([]*models.Renewal, error) {
	switch role {
	case domain.RoleDRM:
		return s.filter(func(r *models.Renewal) bool { return r.InitiatorID == id }), nil
	case domain.RoleHOD:
		return s.filter(func(r *models.Renewal) bool { return r.ApproverID == id }), nil
	case domain.RoleNetOps:
		return s.filter(func(r *models.Renewal) bool {
			return r.Status == models.StatusApproved || r.Status == models.StatusRenewed
		}), nil
	default:
		return []*models.Renewal{}, nil
	}
}

func (s *InMemoryStore) Update(_ context.Context, id domain.IPRenewalID, validate func(*models.Renewal) error, mutate func(*models.Renewal)) (*models.Renewal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("ip renewal %d: %w", id, ErrNotFound)
	}
	r := clone(current)
	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)
	s.records[id] = r
	return clone(r), nil
}

func (s *InMemoryStore) SetSyncStatus(ctx context.Context, id domain.IPRenewalID, status domain.SyncStatus, syncErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("ip renewal %d: %w", id, ErrNotFound)
	}
	r.SyncStatus = status
	r.SyncError = syncErr
	r.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryStore) filter(keep func(*models.Renewal) bool) []*models.Renewal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Renewal, 0)
	for _, r := range s.records {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	slices.SortFunc(out, func(a, b *models.Renewal) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
