package outbox

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	maxBackoff := 60 * time.Second
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 0},
		{attempts: 1, want: time.Second},
		{attempts: 2, want: 2 * time.Second},
		{attempts: 3, want: 4 * time.Second},
		{attempts: 7, want: 60 * time.Second},
		{attempts: 200, want: 60 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, backoff(tc.attempts, maxBackoff), "attempts=%d", tc.attempts)
	}
}

func TestJitter(t *testing.T) {
	t.Run("stays within bound and is deterministic per seed", func(t *testing.T) {
		maxJitter := 200 * time.Millisecond
		got := jitter(rand.New(rand.NewSource(1)), maxJitter)
		assert.GreaterOrEqual(t, got, time.Duration(0))
		assert.LessOrEqual(t, got, maxJitter)
		assert.Equal(t, got, jitter(rand.New(rand.NewSource(1)), maxJitter))
	})

	t.Run("disabled", func(t *testing.T) {
		assert.Zero(t, jitter(rand.New(rand.NewSource(1)), 0))
		assert.Zero(t, jitter(nil, time.Second))
	})
}

func TestTruncate(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, truncateError(nil, 10))
	})

	t.Run("ascii", func(t *testing.T) {
		assert.Equal(t, "hello", truncateError(errors.New("hello world"), 5))
	})

	t.Run("does not split a multi-byte rune", func(t *testing.T) {
		// "é" is two bytes; cutting at 2 would leave half of it.
		assert.Equal(t, "a", truncateString("aé", 2))
	})

	t.Run("short strings are untouched", func(t *testing.T) {
		assert.Equal(t, "ok", truncateString("ok", 10))
	})
}

func TestPermanent(t *testing.T) {
	base := errors.New("gone")
	wrapped := Permanent(base)

	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.False(t, IsPermanent(base))
	assert.NoError(t, Permanent(nil))
}
