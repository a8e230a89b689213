package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitmesh/orbit/pkg/bus"
	"github.com/orbitmesh/orbit/pkg/servicectx"
)

type stubTarget struct{ key string }

func (s stubTarget) Key() string            { return s.key }
func (s stubTarget) LocalPut(ev bus.Event)  {}
func (s stubTarget) RemotePut(ev bus.Event) {}

type fakeService struct {
	Base
	initErr, runErr, termErr error
	initCalled, runCalled, termCalled bool
}

func newFake() *fakeService {
	return &fakeService{Base: NewBase("fake")}
}

func (f *fakeService) Initialize(ctx context.Context, sc *servicectx.Context) error {
	f.initCalled = true
	return f.initErr
}
func (f *fakeService) Run(ctx context.Context, sc *servicectx.Context) error {
	f.runCalled = true
	return f.runErr
}
func (f *fakeService) Terminate(ctx context.Context, sc *servicectx.Context) error {
	f.termCalled = true
	return f.termErr
}

func testContext() *servicectx.Context {
	return servicectx.New("pool-a", stubTarget{key: "pool-a"}, bus.New())
}

func TestStartAdvancesThroughInitializedAndRunning(t *testing.T) {
	svc := newFake()
	require.Equal(t, StateUninitialized, svc.State())

	Start(context.Background(), svc, testContext())

	assert.True(t, svc.initCalled)
	assert.True(t, svc.runCalled)
	assert.Equal(t, StateRunning, svc.State())
}

func TestStartStopsAtErrorFromInitialize(t *testing.T) {
	svc := newFake()
	svc.initErr = errors.New("boom")

	Start(context.Background(), svc, testContext())

	assert.True(t, svc.initCalled)
	assert.False(t, svc.runCalled)
	assert.Equal(t, StateError, svc.State())
}

func TestStartStopsAtErrorFromRun(t *testing.T) {
	svc := newFake()
	svc.runErr = errors.New("boom")

	Start(context.Background(), svc, testContext())

	assert.Equal(t, StateError, svc.State())
}

func TestStartRecoversFromPanic(t *testing.T) {
	panicking := &panicService{Base: NewBase("panicking")}
	require.NotPanics(t, func() {
		Start(context.Background(), panicking, testContext())
	})
	assert.Equal(t, StateError, panicking.State())
}

type panicService struct {
	Base
}

func (p *panicService) Initialize(ctx context.Context, sc *servicectx.Context) error {
	panic("kaboom")
}
func (p *panicService) Run(ctx context.Context, sc *servicectx.Context) error      { return nil }
func (p *panicService) Terminate(ctx context.Context, sc *servicectx.Context) error { return nil }

func TestStopOnlyActsWhenRunning(t *testing.T) {
	svc := newFake()
	Stop(context.Background(), svc, testContext())

	assert.False(t, svc.termCalled)
	assert.Equal(t, StateUninitialized, svc.State())
}

func TestStopTerminatesARunningService(t *testing.T) {
	svc := newFake()
	Start(context.Background(), svc, testContext())
	require.Equal(t, StateRunning, svc.State())

	Stop(context.Background(), svc, testContext())

	assert.True(t, svc.termCalled)
	assert.Equal(t, StateTerminated, svc.State())
}

func TestStopSetsErrorOnTerminateFailure(t *testing.T) {
	svc := newFake()
	Start(context.Background(), svc, testContext())
	svc.termErr = errors.New("boom")

	Stop(context.Background(), svc, testContext())

	assert.Equal(t, StateError, svc.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "unknown", State(99).String())
}
