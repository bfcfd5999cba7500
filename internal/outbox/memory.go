package outbox

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"renewals/pkg/platform/sentinel"
)

// StoreOption configures an outbox store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	metrics *Metrics
	clock   func() time.Time
}

func WithStoreMetrics(m *Metrics) StoreOption {
	return func(o *storeOptions) { o.metrics = m }
}

// WithStoreClock overrides the clock used for Requeue and MarkDead in the
// memory store.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func applyStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MemoryStore is an in-process Store used when no database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*Message
	leading  bool
	opts     storeOptions
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	return &MemoryStore{
		messages: make(map[uuid.UUID]*Message),
		opts:     applyStoreOptions(opts),
	}
}

func (s *MemoryStore) Enqueue(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.PublishedAt == nil && m.AggregateType == msg.AggregateType &&
			m.AggregateID == msg.AggregateID && m.Topic == msg.Topic {
			return fmt.Errorf("enqueue %s/%d: %w", msg.AggregateType, msg.AggregateID, sentinel.ErrConflict)
		}
	}
	stored := msg
	s.messages[msg.ID] = &stored
	s.opts.metrics.incEnqueued(msg.Topic)
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, now, staleBefore time.Time, maxAttempts, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*Message, 0)
	for _, m := range s.messages {
		if m.PublishedAt != nil || m.DeadAt != nil {
			continue
		}
		if m.AvailableAt.After(now) || m.Attempts >= maxAttempts {
			continue
		}
		if m.LockedAt != nil && !m.LockedAt.Before(staleBefore) {
			continue
		}
		candidates = append(candidates, m)
	}
	sortMessages(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	claimed := make([]Message, 0, len(candidates))
	for _, m := range candidates {
		lockedAt := now
		m.LockedAt = &lockedAt
		m.Attempts++
		claimed = append(claimed, *m)
	}
	return claimed, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(m *Message) {
		now := s.opts.clock()
		m.PublishedAt = &now
		m.LockedAt = nil
		m.LastError = ""
	})
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, lastErr string, availableAt time.Time) error {
	return s.update(id, func(m *Message) {
		m.LockedAt = nil
		m.LastError = lastErr
		m.AvailableAt = availableAt
	})
}

func (s *MemoryStore) MarkDead(_ context.Context, id uuid.UUID, lastErr string) error {
	return s.update(id, func(m *Message) {
		now := s.opts.clock()
		m.DeadAt = &now
		m.LockedAt = nil
		m.LastError = lastErr
	})
}

func (s *MemoryStore) update(id uuid.UUID, fn func(m *Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.PublishedAt != nil {
		return nil
	}
	fn(m)
	return nil
}

func (s *MemoryStore) Requeue(_ context.Context, aggType AggregateType, aggID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, m := range s.messages {
		if m.PublishedAt != nil || m.AggregateType != aggType || m.AggregateID != aggID {
			continue
		}
		m.DeadAt = nil
		m.LockedAt = nil
		m.Attempts = 0
		m.LastError = ""
		m.AvailableAt = s.opts.clock()
		found = true
	}
	if !found {
		return fmt.Errorf("requeue %s/%d: %w", aggType, aggID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	for _, m := range s.messages {
		if m.PublishedAt != nil {
			continue
		}
		switch {
		case m.DeadAt != nil:
			st.Dead++
		case m.LockedAt != nil:
			st.Pending++
			st.Locked++
		default:
			st.Pending++
		}
	}
	return st, nil
}

// TryLead grants leadership to one caller at a time within the process.
func (s *MemoryStore) TryLead(_ context.Context) (func(), bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leading {
		return nil, false, nil
	}
	s.leading = true
	return func() {
		s.mu.Lock()
		s.leading = false
		s.mu.Unlock()
	}, true, nil
}

// Messages returns copies of every stored message, oldest first.
func (s *MemoryStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*Message, 0, len(s.messages))
	for _, m := range s.messages {
		all = append(all, m)
	}
	sortMessages(all)
	out := make([]Message, 0, len(all))
	for _, m := range all {
		out = append(out, *m)
	}
	return out
}

func sortMessages(msgs []*Message) {
	slices.SortFunc(msgs, func(a, b *Message) int {
		if c := a.AvailableAt.Compare(b.AvailableAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
