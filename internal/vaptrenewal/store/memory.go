package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"renewals/internal/vaptrenewal/models"
	"renewals/pkg/domain"
	"renewals/pkg/platform/tx"
	"renewals/pkg/requestcontext"
)

// InMemoryStore keeps renewals in a map guarded by one mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	serial  tx.Serial
	nextID  int64
	records map[domain.VaptRenewalID]*models.Renewal
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.VaptRenewalID]*models.Renewal)}
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return s.serial.Run(ctx, fn)
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Renewal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.VaptID == r.VaptID && existing.IsOpen() {
			return fmt.Errorf("open renewal for vapt %d: %w", r.VaptID, ErrConflict)
		}
	}
	s.nextID++
	r.ID = domain.VaptRenewalID(s.nextID)
	s.records[r.ID] = clone(r)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.VaptRenewalID) (*models.Renewal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("vapt renewal %d: %w", id, ErrNotFound)
	}
	return clone(r), nil
}

func (s *InMemoryStore) ListByResource(_ context.Context, vaptID domain.VaptID) ([]*models.Renewal, error) {
	return s.filter(func(r *models.Renewal) bool { return r.VaptID == vaptID }), nil
}

func (s *InMemoryStore) CountByResource(_ context.Context, vaptID domain.VaptID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.records {
		if r.VaptID == vaptID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, role domain.Role, id domain.EmployeeID) ([]*models.Renewal, error) {
	switch role {
	case domain.RoleDRM:
		return s.filter(func(r *models.Renewal) bool { return r.InitiatorID == id }), nil
	case domain.RoleHOD:
		return s.filter(func(r *models.Renewal) bool { return r.ApproverID == id }), nil
	default:
		return []*models.Renewal{}, nil
	}
}

func (s *InMemoryStore) Update(_ context.Context, id domain.VaptRenewalID, validate func(*models.Renewal) error, mutate func(*models.Renewal)) (*models.Renewal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("vapt renewal %d: %w", id, ErrNotFound)
	}
	r := clone(current)
	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)
	s.records[id] = r
	return clone(r), nil
}

func (s *InMemoryStore) SetSyncStatus(ctx context.Context, id domain.VaptRenewalID, status domain.SyncStatus, syncErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("vapt renewal %d: %w", id, ErrNotFound)
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
