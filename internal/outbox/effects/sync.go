package effects

import (
	"context"
	"fmt"

	"renewals/internal/outbox"
	"renewals/pkg/domain"
)

// SyncFunc records a delivery outcome on one request family.
type SyncFunc func(ctx context.Context, aggregateID int64, status domain.SyncStatus, reason string) error

// SyncRecorder routes delivery outcomes to the family owning the aggregate.
type SyncRecorder struct {
	targets map[outbox.AggregateType]SyncFunc
}

func NewSyncRecorder(targets map[outbox.AggregateType]SyncFunc) *SyncRecorder {
	return &SyncRecorder{targets: targets}
}

func (r *SyncRecorder) MarkSynced(ctx context.Context, aggType outbox.AggregateType, aggID int64) error {
	return r.record(ctx, aggType, aggID, domain.SyncSynced, "")
}

func (r *SyncRecorder) MarkSyncFailed(ctx context.Context, aggType outbox.AggregateType, aggID int64, reason string) error {
	return r.record(ctx, aggType, aggID, domain.SyncFailed, reason)
}

func (r *SyncRecorder) record(ctx context.Context, aggType outbox.AggregateType, aggID int64, status domain.SyncStatus, reason string) error {
	fn, ok := r.targets[aggType]
	if !ok {
		return fmt.Errorf("no sync target for aggregate type %q", aggType)
	}
	return fn(ctx, aggID, status, reason)
}
