package pool

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orbitmesh/orbit/pkg/bus"
	"github.com/orbitmesh/orbit/pkg/lifecycle"
	"github.com/orbitmesh/orbit/pkg/log"
	"github.com/orbitmesh/orbit/pkg/metrics"
	"github.com/orbitmesh/orbit/pkg/scheduler"
	"github.com/orbitmesh/orbit/pkg/servicectx"
)

// InboundQueueSize bounds the number of undelivered events a pool will
// buffer before a Put blocks. This is the only backpressure mechanism: the
// design does not promise delivery acknowledgement or unbounded buffering.
const InboundQueueSize = 256

// Pool is an isolated execution group: one dedicated worker goroutine
// pinned to an OS thread, one cooperative scheduler, one inbound event
// queue, and the ordered set of services it owns.
type Pool struct {
	key      string
	services []lifecycle.Service
	bus      *bus.Bus
	logger   zerolog.Logger

	sched   *scheduler.Scheduler
	inbound chan bus.Event
	svcCtx  *servicectx.Context

	runCancel      context.CancelFunc
	dispatchCancel context.CancelFunc
	stopped        chan struct{}
}

// New constructs a pool identified by key, owning services in the given
// order. The pool does nothing until Run is called.
func New(key string, services []lifecycle.Service, b *bus.Bus) *Pool {
	return &Pool{
		key:      key,
		services: services,
		bus:      b,
		logger:   log.WithPool(key),
		stopped:  make(chan struct{}),
	}
}

// Key identifies this pool; it is the identity the bus uses as a slot key
// and the label pool metrics are reported under.
func (p *Pool) Key() string { return p.key }

// Run is the pool's dedicated worker goroutine: it creates the scheduler
// and inbound queue, fires every service's Start step as an independent
// concurrent task (a service's Run step is expected to block until the
// service is stopped), schedules the inbound dispatch task, then blocks
// running the scheduler until Stop signals it to return. Once that happens
// it runs every service's Terminate step in reverse order and releases the
// scheduler. The caller should invoke Run in its own goroutine and use Stop
// from another to shut it down.
func (p *Pool) Run() {
	sched, err := scheduler.New(p.key, scheduler.DefaultConcurrency)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to create scheduler")
		close(p.stopped)
		return
	}
	p.sched = sched
	p.inbound = make(chan bus.Event, InboundQueueSize)
	p.svcCtx = servicectx.New(p.key, p, p.bus)

	runCtx, runCancel := context.WithCancel(context.Background())
	p.runCancel = runCancel
	p.startServices(runCtx)

	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())
	p.dispatchCancel = dispatchCancel
	p.sched.Go(func() { p.dispatchLoop(dispatchCtx) })

	p.sched.Run() // blocks until Stop calls p.sched.StopLoop()

	p.stopServices()
	p.sched.Close()
	close(p.stopped)
}

// Stop cancels every running service's context and the dispatch task, stops
// the scheduler's mailbox loop (which unblocks the Run call above), and
// waits for the resulting shutdown sequence — reverse-order service
// termination and scheduler release — to finish.
func (p *Pool) Stop() {
	if p.runCancel != nil {
		p.runCancel()
	}
	if p.dispatchCancel != nil {
		p.dispatchCancel()
	}
	if p.sched != nil {
		p.sched.StopLoop()
	}
	<-p.stopped
}

// LocalPut implements bus.Target for a same-pool publish: a direct enqueue
// from the publishing service's own task, without a hand-off through the
// scheduler's mailbox thread.
func (p *Pool) LocalPut(ev bus.Event) {
	p.inbound <- ev
	metrics.PoolInboundQueueDepth.WithLabelValues(p.key).Set(float64(len(p.inbound)))
}

// RemotePut implements bus.Target for a cross-pool publish: it hands the
// put to this pool's scheduler and blocks until the scheduler's own
// goroutine has performed it, preserving single-writer access to the queue.
func (p *Pool) RemotePut(ev bus.Event) {
	timer := metrics.NewTimer()
	p.sched.Submit(func() {
		p.inbound <- ev
		metrics.PoolInboundQueueDepth.WithLabelValues(p.key).Set(float64(len(p.inbound)))
	})
	timer.ObserveDuration(metrics.CrossPoolPutDuration)
}

// startServices fires every service's Start step as an independent task and
// returns immediately; it does not wait for any of them to finish, since a
// healthy service's Run step does not return until the service is stopped.
func (p *Pool) startServices(runCtx context.Context) {
	for _, svc := range p.services {
		svc := svc
		p.sched.Go(func() {
			timer := metrics.NewTimer()
			lifecycle.Start(runCtx, svc, p.svcCtx)
			timer.ObserveDurationVec(metrics.ServiceStartDuration, p.key)
			p.refreshServiceGauges()
		})
	}
}

// stopServices runs every service's Terminate step in reverse registration
// order, concurrently, and blocks until all of them have returned.
func (p *Pool) stopServices() {
	var wg sync.WaitGroup
	for i := len(p.services) - 1; i >= 0; i-- {
		svc := p.services[i]
		wg.Add(1)
		p.sched.Go(func() {
			defer wg.Done()
			timer := metrics.NewTimer()
			lifecycle.Stop(context.Background(), svc, p.svcCtx)
			timer.ObserveDurationVec(metrics.ServiceStopDuration, p.key)
		})
	}
	wg.Wait()
	p.refreshServiceGauges()
}

func (p *Pool) refreshServiceGauges() {
	running, errored := 0, 0
	for _, svc := range p.services {
		switch svc.State() {
		case lifecycle.StateRunning:
			running++
		case lifecycle.StateError:
			errored++
		}
	}
	metrics.PoolServicesRunning.WithLabelValues(p.key).Set(float64(running))
	metrics.PoolServicesErrored.WithLabelValues(p.key).Set(float64(errored))
}

// dispatchLoop is the single cooperative task that drains the inbound queue
// and fans each event out to its registered handlers. A cancelled context
// ends the loop cleanly; any other failure is logged and ends it too —
// deliveries to this pool stop, but its services keep running and may still
// publish.
func (p *Pool) dispatchLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PoolDispatchErrorsTotal.WithLabelValues(p.key).Inc()
			p.logger.Error().Interface("panic", r).Msg("dispatch loop terminated by unexpected error")
		}
	}()

	for {
		select {
		case ev := <-p.inbound:
			metrics.PoolInboundQueueDepth.WithLabelValues(p.key).Set(float64(len(p.inbound)))
			p.deliver(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) deliver(ev bus.Event) {
	handlers := p.bus.HandlersFor(p.key, ev.Topic)
	for _, h := range handlers {
		h := h
		metrics.EventsDispatchedTotal.WithLabelValues(ev.Topic, p.key).Inc()
		p.sched.Go(func() { h(ev.Payload) })
	}
}
