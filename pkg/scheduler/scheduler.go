package scheduler

import (
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/orbitmesh/orbit/pkg/log"
)

// DefaultConcurrency bounds the number of fire-and-forget tasks (handler
// invocations, service start/stop steps) a scheduler will run at once.
const DefaultConcurrency = 64

type mailItem struct {
	fn   func()
	done chan struct{}
}

// Scheduler is a pool's cooperative task scheduler: one dedicated goroutine
// (pinned to an OS thread via Run) drains a mailbox for work that must
// execute with single-writer exclusivity, while Go submits independent
// concurrent tasks onto a bounded worker pool. Submit gets you "runs on
// this pool's thread", Go gets you "scheduled on this pool's scheduler,
// concurrently with everything else".
type Scheduler struct {
	poolKey string
	workers *ants.Pool
	mailbox chan mailItem
	stop    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

// New creates a scheduler for the named pool with the given worker
// concurrency for Go-scheduled tasks.
func New(poolKey string, concurrency int) (*Scheduler, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := log.WithPool(poolKey)

	workers, err := ants.NewPool(concurrency,
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(p any) {
			logger.Error().Interface("panic", p).Msg("recovered panic in scheduled task")
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		poolKey: poolKey,
		workers: workers,
		mailbox: make(chan mailItem),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}, nil
}

// Run executes the scheduler's mailbox loop on the calling goroutine until
// StopLoop is called. The calling goroutine is locked to its OS thread for
// the duration, so it is this pool's dedicated worker thread: every Submit
// call below is guaranteed to run its closure on the same thread, for as
// long as Run has not returned.
func (s *Scheduler) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.stopped)

	for {
		select {
		case item := <-s.mailbox:
			item.fn()
			close(item.done)
		case <-s.stop:
			return
		}
	}
}

// StopLoop signals Run to return. It does not release the worker pool: Go
// and Wait remain usable afterwards so shutdown steps (e.g. service
// terminate) can still run as scheduled tasks. Call Close once those are
// done.
func (s *Scheduler) StopLoop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.stopped
}

// Go schedules fn to run concurrently as an independent task. It returns as
// soon as a worker has accepted fn; while every worker of the bounded pool is
// busy, it blocks the caller until one is free. It makes no ordering guarantee relative to any other
// task already scheduled; callers that need to know when fn has finished
// should track it externally (e.g. with a sync.WaitGroup) or call Wait.
func (s *Scheduler) Go(fn func()) {
	s.wg.Add(1)
	if err := s.workers.Submit(func() {
		defer s.wg.Done()
		fn()
	}); err != nil {
		s.wg.Done()
		s.logger.Error().Err(err).Msg("failed to schedule task")
	}
}

// Submit runs fn on the scheduler's own mailbox-loop goroutine and blocks
// until fn has returned. This is how a cross-pool publish hands an event to
// the owning pool's thread without ever mutating that pool's queue from a
// foreign goroutine. Once StopLoop has been called, Submit returns without
// running fn.
func (s *Scheduler) Submit(fn func()) {
	done := make(chan struct{})
	select {
	case s.mailbox <- mailItem{fn: fn, done: done}:
		<-done
	case <-s.stop:
	}
}

// Wait blocks until every task submitted via Go has completed.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close releases the worker pool. Call it only after Run has returned and
// any shutdown tasks scheduled via Go have been waited on.
func (s *Scheduler) Close() {
	s.workers.Release()
}
