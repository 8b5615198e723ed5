package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidInterval = errors.New("timer interval must be positive")
	ErrNilFireFunc     = errors.New("timer fire func is required")
)

// Handle identifies one arming of a subscriber's timer. A re-arm issues a new handle,
// so a fire carrying an old handle can be recognised as stale.
type Handle uint64

// FireFunc is invoked on a cron goroutine each time a subscriber's timer fires.
type FireFunc func(chatID int64, h Handle)

type timer struct {
	handle  Handle
	entryID cron.EntryID
}

// TimerRegistry owns at most one recurring cron entry per chat ID.
type TimerRegistry struct {
	mu     sync.Mutex
	engine *cron.Cron
	timers map[int64]timer
	seq    uint64
	logger *logrus.Entry
	now    func() time.Time
}

func NewTimerRegistry(logger *logrus.Entry) *TimerRegistry {
	cronLogger := cron.PrintfLogger(logger)
	return &TimerRegistry{
		engine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		timers: make(map[int64]timer),
		logger: logger,
		now:    time.Now,
	}
}

func (r *TimerRegistry) Start() {
	r.logger.Info("Starting timer registry...")
	r.engine.Start()
	r.logger.WithField("timers", r.Len()).Info("Timer registry started.")
}

// Stop halts the engine and waits for in-flight fires until ctx expires.
func (r *TimerRegistry) Stop(ctx context.Context) {
	r.logger.Info("Stopping timer registry...")
	done := r.engine.Stop()

	r.mu.Lock()
	for chatID, t := range r.timers {
		r.engine.Remove(t.entryID)
		delete(r.timers, chatID)
	}
	r.mu.Unlock()

	select {
	case <-done.Done():
		r.logger.Info("Timer registry gracefully stopped.")
	case <-ctx.Done():
		r.logger.Warn("Timer registry stop timed out with fires still running.")
	}
}

// Arm replaces any timer for chatID with one that fires after firstDelay and then
// every interval. The swap happens under one lock, so two live timers for the same
// chat never coexist in the registry.
func (r *TimerRegistry) Arm(chatID int64, interval, firstDelay time.Duration, fn FireFunc) (Handle, error) {
	if interval <= 0 {
		return 0, ErrInvalidInterval
	}
	if fn == nil {
		return 0, ErrNilFireFunc
	}
	if firstDelay < 0 {
		firstDelay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := false
	if old, ok := r.timers[chatID]; ok {
		r.engine.Remove(old.entryID)
		replaced = true
	}

	r.seq++
	h := Handle(r.seq)
	sched := newFirstThenEvery(r.now().Add(firstDelay), interval)
	entryID := r.engine.Schedule(sched, cron.FuncJob(func() { fn(chatID, h) }))
	r.timers[chatID] = timer{handle: h, entryID: entryID}

	r.logger.WithFields(logrus.Fields{
		"chat_id":     chatID,
		"handle":      h,
		"interval":    interval.String(),
		"first_delay": firstDelay.String(),
		"replaced":    replaced,
	}).Debug("Timer armed")
	return h, nil
}

// Cancel removes the timer for chatID. It reports whether one existed.
func (r *TimerRegistry) Cancel(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelLocked(chatID)
}

// CancelHandle removes the timer for chatID only if h is still its current handle.
func (r *TimerRegistry) CancelHandle(chatID int64, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[chatID]; !ok || t.handle != h {
		return false
	}
	return r.cancelLocked(chatID)
}

func (r *TimerRegistry) cancelLocked(chatID int64) bool {
	t, ok := r.timers[chatID]
	if !ok {
		return false
	}
	r.engine.Remove(t.entryID)
	delete(r.timers, chatID)
	r.logger.WithFields(logrus.Fields{"chat_id": chatID, "handle": t.handle}).Debug("Timer cancelled")
	return true
}

func (r *TimerRegistry) Current(chatID int64) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[chatID]
	return t.handle, ok
}

// NextFire returns when the chat's timer fires next. It is zero until the engine
// has scheduled the entry.
func (r *TimerRegistry) NextFire(chatID int64) (time.Time, bool) {
	r.mu.Lock()
	t, ok := r.timers[chatID]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	e := r.engine.Entry(t.entryID)
	if !e.Valid() || e.Next.IsZero() {
		return time.Time{}, false
	}
	return e.Next, true
}

func (r *TimerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
