package observer

import (
	"sync"
	"time"
)

// Scheduler runs a callback periodically until cancelled
type Scheduler interface {
	// Every starts calling fn every d. The returned function stops it; it
	// must be safe to call more than once.
	Every(d time.Duration, fn func()) (cancel func())
}

// TickerScheduler drives callbacks from a time.Ticker on its own goroutine
type TickerScheduler struct{}

// Every implements Scheduler. Cancel blocks until the goroutine has exited,
// so no callback runs after it returns.
func (TickerScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
		<-exited
	}
}

// ManualScheduler lets tests fire ticks deterministically
type ManualScheduler struct {
	mu    sync.Mutex
	next  int
	tasks map[int]func()
	// Period records the interval of the last registration
	Period time.Duration
}

// NewManualScheduler creates an empty ManualScheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[int]func())}
}

// Every implements Scheduler
func (s *ManualScheduler) Every(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.tasks[id] = fn
	s.Period = d

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tasks, id)
	}
}

// Tick fires every registered callback once
func (s *ManualScheduler) Tick() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.tasks))
	for i := 0; i < s.next; i++ {
		if fn, ok := s.tasks[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Active returns the number of registered callbacks
func (s *ManualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
