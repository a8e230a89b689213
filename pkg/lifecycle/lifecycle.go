package lifecycle

import (
	"context"
	"sync/atomic"

	"github.com/orbitmesh/orbit/pkg/log"
	"github.com/orbitmesh/orbit/pkg/servicectx"
)

// State is a service's position in its lifecycle state machine. States only
// ever move forward: Uninitialized -> Initialized -> Running -> Terminated,
// with Error reachable from any step on failure.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateTerminated
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Service is a long-running entity driven by Start/Stop. Author-supplied
// steps (Initialize, Run, Terminate) receive a *servicectx.Context bound to
// the owning pool. setState is unexported so the state machine can only be
// advanced by code in this package; concrete services get it for free by
// embedding Base.
type Service interface {
	Name() string
	State() State
	setState(State)

	Initialize(ctx context.Context, sc *servicectx.Context) error
	Run(ctx context.Context, sc *servicectx.Context) error
	Terminate(ctx context.Context, sc *servicectx.Context) error
}

// Base provides the bookkeeping (name, state) that every concrete Service
// needs. Embed it by value and the embedding type satisfies the Name/State
// half of the Service interface automatically.
type Base struct {
	name  string
	state atomic.Int32
}

// NewBase constructs a Base in the Uninitialized state.
func NewBase(name string) Base {
	b := Base{name: name}
	b.state.Store(int32(StateUninitialized))
	return b
}

func (b *Base) Name() string { return b.name }

func (b *Base) State() State { return State(b.state.Load()) }

func (b *Base) setState(s State) { b.state.Store(int32(s)) }

// Start drives svc from its current state toward Running. The state
// transition always happens before the corresponding step is invoked, so a
// Run loop that polls svc.State() observes the new value immediately: a
// service moving uninitialized -> initialized -> running sees exactly that
// sequence from inside Initialize and Run. Any error or panic out of
// Initialize or Run sets state to Error and is logged; it never propagates
// to the caller, so a failing service cannot take down its siblings.
func Start(ctx context.Context, svc Service, sc *servicectx.Context) {
	logger := log.WithService(svc.Name())

	defer func() {
		if r := recover(); r != nil {
			svc.setState(StateError)
			logger.Error().Interface("panic", r).Msg("service start panicked")
		}
	}()

	if svc.State() == StateUninitialized {
		svc.setState(StateInitialized)
		if err := svc.Initialize(ctx, sc); err != nil {
			svc.setState(StateError)
			logger.Error().Err(err).Msg("service initialize failed")
			return
		}
	}

	if svc.State() == StateInitialized {
		svc.setState(StateRunning)
		if err := svc.Run(ctx, sc); err != nil {
			svc.setState(StateError)
			logger.Error().Err(err).Msg("service run exited with error")
		}
	}
}

// Stop drives svc from Running to Terminated and invokes Terminate. Setting
// state to Terminated before Terminate runs means a Run loop polling its own
// state exits at its next check, the same instant Stop begins tearing it
// down. Failures set state to Error and are swallowed, same as Start.
func Stop(ctx context.Context, svc Service, sc *servicectx.Context) {
	logger := log.WithService(svc.Name())

	defer func() {
		if r := recover(); r != nil {
			svc.setState(StateError)
			logger.Error().Interface("panic", r).Msg("service stop panicked")
		}
	}()

	if svc.State() == StateRunning {
		svc.setState(StateTerminated)
		if err := svc.Terminate(ctx, sc); err != nil {
			svc.setState(StateError)
			logger.Error().Err(err).Msg("service terminate failed")
		}
	}
}
