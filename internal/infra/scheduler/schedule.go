package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// firstThenEvery fires once at first (or immediately if first has passed), then
// delegates to a constant-delay schedule. cron asks an entry for its first Next
// exactly once, when the entry is added to a running engine or the engine starts.
type firstThenEvery struct {
	first time.Time
	every cron.ConstantDelaySchedule
	used  atomic.Bool
}

func newFirstThenEvery(first time.Time, interval time.Duration) *firstThenEvery {
	return &firstThenEvery{first: first, every: cron.Every(interval)}
}

func (s *firstThenEvery) Next(t time.Time) time.Time {
	if s.used.CompareAndSwap(false, true) {
		if s.first.After(t) {
			return s.first
		}
		return t
	}
	return s.every.Next(t)
}
