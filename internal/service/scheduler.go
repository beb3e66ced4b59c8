package service

import (
	"sync"
	"time"
)

// Scheduler defers at most one task per session. Scheduling again for the same
// session replaces the pending task; Cancel stops it. A task that fires anyway
// is expected to re-validate its own preconditions, so cancellation here is an
// optimization, not a correctness requirement.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
	}
}

func (that *Scheduler) Schedule(sessionID string, delay time.Duration, task func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[sessionID]; ok {
		timer.Stop()
	}

	that.timers[sessionID] = time.AfterFunc(delay, func() {
		that.mu.Lock()
		delete(that.timers, sessionID)
		that.mu.Unlock()

		task()
	})
}

func (that *Scheduler) Cancel(sessionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[sessionID]; ok {
		timer.Stop()
		delete(that.timers, sessionID)
	}
}

// Stop cancels every pending task, used on shutdown.
func (that *Scheduler) Stop() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for sessionID, timer := range that.timers {
		timer.Stop()
		delete(that.timers, sessionID)
	}
}
