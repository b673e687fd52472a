package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Gateway traffic counters, read by the health endpoint.
var (
	InitiationsStarted   Counter
	InitiationsSucceeded Counter
	InitiationsFailed    Counter

	CallbacksAccepted     Counter
	CallbacksRejected     Counter
	CallbacksUnauthorized Counter
)

// Snapshot returns the current counter values keyed by metric name.
func Snapshot() map[string]uint64 {
	return map[string]uint64{
		"initiations_started":    InitiationsStarted.Load(),
		"initiations_succeeded":  InitiationsSucceeded.Load(),
		"initiations_failed":     InitiationsFailed.Load(),
		"callbacks_accepted":     CallbacksAccepted.Load(),
		"callbacks_rejected":     CallbacksRejected.Load(),
		"callbacks_unauthorized": CallbacksUnauthorized.Load(),
	}
}
