package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"renewals/internal/transfer/models"
	"renewals/pkg/domain"
	"renewals/pkg/platform/tx"
	"renewals/pkg/requestcontext"
)

// InMemoryStore keeps transfers in a map. Create checks the one-open-transfer
// rule under the same lock as the insert.
type InMemoryStore struct {
	mu      sync.RWMutex
	serial  tx.Serial
	nextID  int64
	records map[domain.TransferID]*models.Transfer
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.TransferID]*models.Transfer)}
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return s.serial.Run(ctx, fn)
}

func (s *InMemoryStore) Create(_ context.Context, t *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.DomainID == t.DomainID && existing.IsOpen() {
			return fmt.Errorf("open transfer for domain %d: %w", t.DomainID, ErrConflict)
		}
	}
	s.nextID++
	t.ID = domain.TransferID(s.nextID)
	s.records[t.ID] = clone(t)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.TransferID) (*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("transfer %d: %w", id, ErrNotFound)
	}
	return clone(t), nil
}

func (s *InMemoryStore) ListByDomain(_ context.Context, domainID domain.DomainID) ([]*models.Transfer, error) {
	return s.filter(func(t *models.Transfer) bool { return t.DomainID == domainID }), nil
}

// ListByActor returns the transfers an approver must decide (HOD) or an
// operator sent or receives (DRM). Other roles see nothing.
func (s *InMemoryStore) ListByActor(_ context.Context, role domain.Role, id domain.EmployeeID) ([]*models.Transfer, error) {
	switch role {
	case domain.RoleHOD:
		return s.filter(func(t *models.Transfer) bool { return t.ApproverID == id }), nil
	case domain.RoleDRM:
		return s.filter(func(t *models.Transfer) bool { return t.FromID == id || t.ToID == id }), nil
	default:
		return []*models.Transfer{}, nil
	}
}

// Update runs validate then mutate on a copy while holding the write lock, and
// stores the copy only when validate passes.
func (s *InMemoryStore) Update(_ context.Context, id domain.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("transfer %d: %w", id, ErrNotFound)
	}
	t := clone(current)
	if err := validate(t); err != nil {
		return nil, err
	}
	mutate(t)
	s.records[id] = t
	return clone(t), nil
}

func (s *InMemoryStore) SetSyncStatus(ctx context.Context, id domain.TransferID, status domain.SyncStatus, syncErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.records[id]
	if !ok {
		return fmt.Errorf("transfer %d: %w", id, ErrNotFound)
	}
	t.SyncStatus = status
	t.SyncError = syncErr
	t.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryStore) filter(keep func(*models.Transfer) bool) []*models.Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Transfer, 0)
	for _, t := range s.records {
		if keep(t) {
			out = append(out, clone(t))
		}
	}
	slices.SortFunc(out, func(a, b *models.Transfer) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
