package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay feeds outcomes to b: 'f' is a failed call, 's' a successful one.
func replay(b *Breaker, outcomes string) []Change {
	changes := make([]Change, 0, len(outcomes))
	for _, o := range outcomes {
		var c Change
		switch o {
		case 'f':
			_, c = b.RecordFailure()
		case 's':
			_, c = b.RecordSuccess()
		}
		changes = append(changes, c)
	}
	return changes
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		recovery int
		outcomes string
		open     bool
	}{
		{"starts closed", 3, 1, "", false},
		{"stays closed below the failure threshold", 3, 1, "ff", false},
		{"opens at the failure threshold", 3, 1, "fff", true},
		{"a success clears the failure streak", 3, 1, "ffsff", false},
		{"half-open needs every recovery success", 1, 2, "fs", true},
		{"closes after the recovery streak", 1, 2, "fss", false},
		{"a failure while open restarts recovery", 1, 3, "fssfss", true},
		{"recovers after a full streak", 1, 3, "fssfsss", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("workflow-service", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.recovery))
			replay(b, tt.outcomes)
			assert.Equal(t, tt.open, b.IsOpen())
		})
	}
}

func TestBreakerReportsEdgesOnce(t *testing.T) {
	b := New("workflow-service", WithFailureThreshold(2), WithSuccessThreshold(1))

	changes := replay(b, "fffs")
	require.Len(t, changes, 4)
	assert.False(t, changes[0].Opened)
	assert.True(t, changes[1].Opened)
	assert.False(t, changes[2].Opened, "already open")
	assert.True(t, changes[3].Closed)

	useFallback, _ := b.RecordFailure()
	assert.False(t, useFallback, "first failure after closing is below threshold")
}

func TestBreakerReset(t *testing.T) {
	b := New("identity", WithFailureThreshold(1))
	replay(b, "f")
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "identity", b.Name())
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := New("workflow-service",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithCooldown(5*time.Second),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, b.Allow())
	replay(b, "f")
	assert.False(t, b.Allow(), "rejects during cooldown")

	now = now.Add(5 * time.Second)
	assert.True(t, b.Allow(), "one probe per window")
	assert.False(t, b.Allow())

	replay(b, "s")
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}
