package util

import (
	"errors"
	"sync"
	"time"
)

// NextSchedule is the first time after now that is offset into a period
// of d.
func NextSchedule(now time.Time, offset time.Duration, d time.Duration) time.Time {
	t := now.Truncate(d).Add(offset)
	if t.After(now) {
		return t
	}
	return t.Add(d)
}

// Scheduler ticks every d, aligned to wall clock multiples of d. Unlike
// time.Ticker the ticks do not drift with the time spent handling them.
type Scheduler struct {
	C <-chan time.Time

	mu    sync.Mutex
	timer *time.Timer
	stop  bool
}

func NewScheduler(offset time.Duration, d time.Duration) *Scheduler {
	if d <= 0 {
		panic(errors.New("non-positive interval for NewScheduler"))
	}
	// 1-element buffer: ticks are dropped while the reader falls behind.
	c := make(chan time.Time, 1)
	s := &Scheduler{C: c}
	next := NextSchedule(time.Now(), offset, d)

	var fire func()
	fire = func() {
		select {
		case c <- time.Now():
		default:
		}
		next = next.Add(d)
		s.mu.Lock()
		if !s.stop {
			s.timer = time.AfterFunc(time.Until(next), fire)
		}
		s.mu.Unlock()
	}
	s.mu.Lock()
	s.timer = time.AfterFunc(time.Until(next), fire)
	s.mu.Unlock()
	return s
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stop = true
	s.timer.Stop()
	s.mu.Unlock()
}
