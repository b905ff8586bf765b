package services

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs functions after a delay. Pending work is dropped when it stops.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[uint64]*time.Timer
	nextID uint64
	wg     sync.WaitGroup
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[uint64]*time.Timer),
	}
}

// Schedule reports false when the scheduler has already stopped.
func (s *Scheduler) Schedule(delay time.Duration, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}

	id := s.nextID
	s.nextID++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		fn(s.ctx)
	})
	return true
}

// Pending returns the number of timers that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Run blocks until ctx is done and then stops the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop cancels pending timers and waits for running functions to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
