// Package scheduler provides named alarms that drive the daemon's
// polling cycles.
package scheduler

import (
	"sync"
	"time"
)

// Handler receives the name of the alarm that fired.
type Handler func(name string)

type alarm struct {
	stop chan struct{}
}

// Scheduler keeps at most one live alarm per name. Set always clears
// any previous alarm under the same name, so re-registering never
// accumulates duplicate timers.
type Scheduler struct {
	mu      sync.Mutex
	alarms  map[string]*alarm
	handler Handler
	wg      sync.WaitGroup
	stopped bool
}

// New creates a scheduler dispatching to handler.
func New(handler Handler) *Scheduler {
	return &Scheduler{
		alarms:  make(map[string]*alarm),
		handler: handler,
	}
}

// Set registers a recurring alarm. The first fire happens after
// initialDelay (period is used when initialDelay is zero), then every
// period.
func (s *Scheduler) Set(name string, period, initialDelay time.Duration) {
	if initialDelay <= 0 {
		initialDelay = period
	}
	s.register(name, func(stop chan struct{}) {
		timer := time.NewTimer(initialDelay)
		defer timer.Stop()
		select {
		case <-stop:
			return
		case <-timer.C:
			s.handler(name)
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.handler(name)
			}
		}
	})
}

// SetOnce registers a one-shot alarm that fires after delay and then
// unregisters itself.
func (s *Scheduler) SetOnce(name string, delay time.Duration) {
	s.register(name, func(stop chan struct{}) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-stop:
			return
		case <-timer.C:
		}
		s.remove(name, stop)
		s.handler(name)
	})
}

// Clear cancels the alarm with the given name, if any.
func (s *Scheduler) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(name)
}

// Active reports whether an alarm with the given name is registered.
func (s *Scheduler) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.alarms[name]
	return ok
}

// Stop cancels every alarm and waits for in-flight goroutines.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for name := range s.alarms {
		s.clearLocked(name)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) register(name string, run func(stop chan struct{})) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.clearLocked(name)

	a := &alarm{stop: make(chan struct{})}
	s.alarms[name] = a
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(a.stop)
	}()
}

// remove drops the alarm entry only if it still owns the given stop
// channel; a Clear+Set that raced the fire leaves the new alarm alone.
func (s *Scheduler) remove(name string, stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alarms[name]; ok && a.stop == stop {
		delete(s.alarms, name)
	}
}

func (s *Scheduler) clearLocked(name string) {
	if a, ok := s.alarms[name]; ok {
		close(a.stop)
		delete(s.alarms, name)
	}
}
