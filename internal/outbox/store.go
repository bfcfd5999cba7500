package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store persists outbox messages. Enqueue joins the transaction carried by ctx
// (see pkg/platform/tx) so the effect commits with the state change.
type Store interface {
	Enqueue(ctx context.Context, msg Message) error
	// Claim locks up to limit deliverable messages and increments their attempts.
	// Messages locked before staleBefore are considered abandoned and reclaimed.
	Claim(ctx context.Context, now, staleBefore time.Time, maxAttempts, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, availableAt time.Time) error
	MarkDead(ctx context.Context, id uuid.UUID, lastErr string) error
	// Requeue resets the undelivered message of an aggregate so the relay picks
	// it up again. Returns sentinel.ErrNotFound when there is none.
	Requeue(ctx context.Context, aggType AggregateType, aggID int64) error
	Stats(ctx context.Context) (Stats, error)
	// TryLead attempts to become the single active relay. release must be called
	// when ok is true.
	TryLead(ctx context.Context) (release func(), ok bool, err error)
}

// Dispatcher applies a message's effect to the outside world.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// SyncRecorder reflects delivery outcomes back onto the owning request.
type SyncRecorder interface {
	MarkSynced(ctx context.Context, aggType AggregateType, aggID int64) error
	MarkSyncFailed(ctx context.Context, aggType AggregateType, aggID int64, reason string) error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The relay moves the message
// straight to dead.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
