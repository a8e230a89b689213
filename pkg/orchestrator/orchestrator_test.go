package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitmesh/orbit/pkg/lifecycle"
	"github.com/orbitmesh/orbit/pkg/servicectx"
)

type noopService struct {
	lifecycle.Base
}

func (s *noopService) Initialize(ctx context.Context, sc *servicectx.Context) error { return nil }
func (s *noopService) Run(ctx context.Context, sc *servicectx.Context) error {
	<-ctx.Done()
	return nil
}
func (s *noopService) Terminate(ctx context.Context, sc *servicectx.Context) error { return nil }

func TestNewRejectsSecondConstruction(t *testing.T) {
	t.Cleanup(resetForTest)

	_, err := New(Config{"pool-a": {&noopService{Base: lifecycle.NewBase("svc-a")}}})
	require.NoError(t, err)

	_, err = New(Config{"pool-b": {&noopService{Base: lifecycle.NewBase("svc-b")}}})
	assert.ErrorIs(t, err, ErrAlreadyConstructed)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	t.Cleanup(resetForTest)

	o, err := New(Config{
		"pool-a": {&noopService{Base: lifecycle.NewBase("svc-a")}},
		"pool-b": {&noopService{Base: lifecycle.NewBase("svc-b")}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
