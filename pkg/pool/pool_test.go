package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitmesh/orbit/pkg/bus"
	"github.com/orbitmesh/orbit/pkg/lifecycle"
	"github.com/orbitmesh/orbit/pkg/servicectx"
)

// subscriberService subscribes to a topic on Initialize and records every
// payload it receives, in order.
type subscriberService struct {
	lifecycle.Base
	topic string

	mu       sync.Mutex
	received []any
	handler  func(any)
	gotOne   chan struct{}
}

func newSubscriberService(topic string) *subscriberService {
	return &subscriberService{
		Base:   lifecycle.NewBase("subscriber:" + topic),
		topic:  topic,
		gotOne: make(chan struct{}, 1),
	}
}

func (s *subscriberService) Initialize(ctx context.Context, sc *servicectx.Context) error {
	s.handler = func(payload any) {
		s.mu.Lock()
		s.received = append(s.received, payload)
		s.mu.Unlock()
		select {
		case s.gotOne <- struct{}{}:
		default:
		}
	}
	sc.Subscribe(s.topic, s.handler)
	return nil
}

func (s *subscriberService) Run(ctx context.Context, sc *servicectx.Context) error {
	<-ctx.Done()
	return nil
}

func (s *subscriberService) Terminate(ctx context.Context, sc *servicectx.Context) error {
	sc.Unsubscribe(s.topic, s.handler)
	return nil
}

func (s *subscriberService) snapshot() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.received))
	copy(out, s.received)
	return out
}

// publisherService publishes one message when Run starts, then blocks until
// the pool cancels its context.
type publisherService struct {
	lifecycle.Base
	topic   string
	payload any
}

func (p *publisherService) Initialize(ctx context.Context, sc *servicectx.Context) error {
	return nil
}
func (p *publisherService) Run(ctx context.Context, sc *servicectx.Context) error {
	sc.Publish(p.topic, p.payload)
	<-ctx.Done()
	return nil
}
func (p *publisherService) Terminate(ctx context.Context, sc *servicectx.Context) error { return nil }

func runPool(t *testing.T, p *Pool) func() {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run()
	}()
	return func() {
		p.Stop()
		<-done
	}
}

func TestSinglePoolDeliversPublishedEvent(t *testing.T) {
	b := bus.New()
	sub := newSubscriberService("topic.x")

	p := New("pool-a", []lifecycle.Service{sub}, b)
	stop := runPool(t, p)
	defer stop()

	require.Eventually(t, func() bool {
		return sub.State() == lifecycle.StateRunning
	}, time.Second, time.Millisecond)

	b.Publish("pool-a", "topic.x", "hello")

	select {
	case <-sub.gotOne:
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the published event")
	}
	assert.Equal(t, []any{"hello"}, sub.snapshot())
}

func TestCrossPoolMessagingDeliversToOtherPool(t *testing.T) {
	b := bus.New()
	sub := newSubscriberService("topic.cross")
	pub := &publisherService{Base: lifecycle.NewBase("publisher"), topic: "topic.cross", payload: "from-other-pool"}

	subPool := New("pool-sub", []lifecycle.Service{sub}, b)
	pubPool := New("pool-pub", []lifecycle.Service{pub}, b)

	stopSub := runPool(t, subPool)
	defer stopSub()
	stopPub := runPool(t, pubPool)
	defer stopPub()

	select {
	case <-sub.gotOne:
	case <-time.After(2 * time.Second):
		t.Fatal("cross-pool message never arrived")
	}
	assert.Equal(t, []any{"from-other-pool"}, sub.snapshot())
}

func TestPoolStopTerminatesServicesInReverseOrder(t *testing.T) {
	b := bus.New()

	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	first := &orderedService{Base: lifecycle.NewBase("first"), onTerminate: func() { record("first") }}
	second := &orderedService{Base: lifecycle.NewBase("second"), onTerminate: func() { record("second") }}

	p := New("pool-a", []lifecycle.Service{first, second}, b)
	stop := runPool(t, p)

	require.Eventually(t, func() bool {
		return first.State() == lifecycle.StateRunning && second.State() == lifecycle.StateRunning
	}, time.Second, time.Millisecond)

	stop()

	assert.Equal(t, []string{"second", "first"}, order)
}

type orderedService struct {
	lifecycle.Base
	onTerminate func()
}

func (o *orderedService) Initialize(ctx context.Context, sc *servicectx.Context) error { return nil }
func (o *orderedService) Run(ctx context.Context, sc *servicectx.Context) error {
	<-ctx.Done()
	return nil
}
func (o *orderedService) Terminate(ctx context.Context, sc *servicectx.Context) error {
	o.onTerminate()
	return nil
}
