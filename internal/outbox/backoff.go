package outbox

import (
	"math"
	"math/rand"
	"time"
)

// backoff returns 1s * 2^(attempts-1), capped at maxBackoff.
func backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := time.Duration(math.Pow(2, float64(attempts-1)) * float64(time.Second))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 || r == nil {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}
