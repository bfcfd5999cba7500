package tx

import (
	"context"
	"sync"
	"time"

	dErrors "renewals/pkg/domain-errors"
)

const defaultSerialTimeout = 5 * time.Second

// Serial is the in-memory stand-in for a database transaction: a coarse lock
// held for the duration of fn. It does not roll back partial writes.
type Serial struct {
	mu      sync.Mutex
	Timeout time.Duration
}

// Run executes fn while holding the lock. A context that is already done, or
// expires while waiting for the lock, aborts with CodeTimeout.
func (s *Serial) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = defaultSerialTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}
