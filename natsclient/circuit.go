package natsclient

import (
	"sync"
	"time"
)

// Circuit breaker states as exported through metrics
const (
	circuitClosed   = 0
	circuitOpen     = 1
	circuitHalfOpen = 2
)

const initialBackoff = time.Second

// breaker counts failed connects. Every threshold failures it trips, asking
// the caller to hold off for the current backoff, and doubles the backoff up
// to max for the next trip.
type breaker struct {
	mu          sync.Mutex
	threshold   int32
	max         time.Duration
	total       int32
	round       int32
	backoff     time.Duration
	lastFailure time.Time
}

func newBreaker(threshold int32, max time.Duration) *breaker {
	return &breaker{threshold: threshold, max: max, backoff: initialBackoff}
}

// fail records one failure. When the round reaches the threshold it returns
// tripped with the pause to apply before the next attempt.
func (b *breaker) fail(now time.Time) (tripped bool, pause time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.round++
	b.lastFailure = now
	if b.round < b.threshold {
		return false, 0
	}
	pause = b.backoff
	b.backoff = min(b.backoff*2, b.max)
	b.round = 0
	return true, pause
}

func (b *breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total, b.round = 0, 0
	b.backoff = initialBackoff
	b.lastFailure = time.Time{}
}

func (b *breaker) snapshot() (failures int32, backoff time.Duration, last time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total, b.backoff, b.lastFailure
}
