package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renewals/internal/outbox"
	"renewals/pkg/platform/sentinel"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	newMsg := func(aggID int64, at time.Time) outbox.Message {
		msg, err := outbox.NewMessage(outbox.TopicIPUpdate, outbox.AggregateIPRenewal, aggID, map[string]int64{"ip_id": aggID}, at)
		require.NoError(t, err)
		return msg
	}

	t.Run("one undelivered message per aggregate and topic", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		require.NoError(t, store.Enqueue(ctx, newMsg(1, now)))
		err := store.Enqueue(ctx, newMsg(1, now))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		assert.NoError(t, store.Enqueue(ctx, newMsg(2, now)))
	})

	t.Run("claim honours order, limit and locks", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		require.NoError(t, store.Enqueue(ctx, newMsg(2, now.Add(time.Second))))
		require.NoError(t, store.Enqueue(ctx, newMsg(1, now)))
		require.NoError(t, store.Enqueue(ctx, newMsg(3, now.Add(time.Hour))))

		claimed, err := store.Claim(ctx, now.Add(time.Minute), now, 5, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		assert.Equal(t, int64(1), claimed[0].AggregateID)
		assert.Equal(t, int64(2), claimed[1].AggregateID)
		assert.Equal(t, 1, claimed[0].Attempts)

		again, err := store.Claim(ctx, now.Add(time.Minute), now, 5, 10)
		require.NoError(t, err)
		assert.Empty(t, again, "locked messages are not claimed twice")

		stale, err := store.Claim(ctx, now.Add(2*time.Minute), now.Add(90*time.Second), 5, 1)
		require.NoError(t, err)
		require.Len(t, stale, 1, "stale locks are reclaimed")
		assert.Equal(t, 2, stale[0].Attempts)
	})

	t.Run("stats", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		a, b, c := newMsg(1, now), newMsg(2, now), newMsg(3, now)
		for _, m := range []outbox.Message{a, b, c} {
			require.NoError(t, store.Enqueue(ctx, m))
		}
		require.NoError(t, store.MarkDead(ctx, a.ID, "boom"))
		require.NoError(t, store.MarkPublished(ctx, b.ID))

		st, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, outbox.Stats{Pending: 1, Locked: 0, Dead: 1}, st)
	})

	t.Run("requeue without message is not found", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		err := store.Requeue(ctx, outbox.AggregateTransfer, 99)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("single leader", func(t *testing.T) {
		store := outbox.NewMemoryStore()
		release, ok, err := store.TryLead(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = store.TryLead(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		release()
		_, ok, err = store.TryLead(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
