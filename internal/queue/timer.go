package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TimerScheduler runs jobs on time.AfterFunc timers in this process.
// Pending jobs are dropped on Close; running jobs are waited for.
type TimerScheduler struct {
	log        *slog.Logger
	jobTimeout time.Duration

	mu       sync.Mutex
	handlers map[string]Handler
	timers   map[uint64]*time.Timer
	next     uint64
	closed   bool
	wg       sync.WaitGroup
}

func NewTimerScheduler(log *slog.Logger, jobTimeout time.Duration) *TimerScheduler {
	return &TimerScheduler{
		log:        log,
		jobTimeout: jobTimeout,
		handlers:   make(map[string]Handler),
		timers:     make(map[uint64]*time.Timer),
	}
}

func (s *TimerScheduler) Register(jobType string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = h
}

func (s *TimerScheduler) Schedule(ctx context.Context, job Job, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	h, ok := s.handlers[job.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}

	id := s.next
	s.next++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.forget(id)
		s.run(h, job)
	})
	return nil
}

func (s *TimerScheduler) run(h Handler, job Job) {
	ctx := context.Background()
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	if err := h(ctx, job); err != nil {
		s.log.Error("job failed", "type", job.Type, "err", err)
	}
}

func (s *TimerScheduler) forget(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, id)
}

func (s *TimerScheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *TimerScheduler) Close() error {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}
