package bus

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orbitmesh/orbit/pkg/log"
	"github.com/orbitmesh/orbit/pkg/metrics"
)

// Handler is an author-supplied callback invoked with a payload as a task on
// the scheduler of the pool that registered it. It runs on one of that
// scheduler's worker goroutines, not on the pool's pinned mailbox thread, and
// may run concurrently with the pool's other handlers.
type Handler func(payload any)

// Event is an immutable (topic, payload) pair. A fresh Event is constructed
// for every pool an event is delivered to; events are never shared by
// reference across pool queues.
type Event struct {
	Topic   string
	Payload any
}

// Target is the delivery surface a pool exposes to the bus. A pool registers
// itself as a Target when it subscribes, so the bus can hand events back to
// it without needing to know anything about schedulers or queues.
type Target interface {
	// Key returns the pool identity this target delivers into.
	Key() string

	// LocalPut enqueues ev directly. It must only be called by the pool's
	// own goroutine (i.e. when the publisher and the target are the same
	// pool) so that the queue is never written from a foreign thread.
	LocalPut(ev Event)

	// RemotePut enqueues ev from a caller that may be running on any
	// other pool's thread. Implementations must hand the put off to their
	// own scheduler and block until it has been accepted, preserving the
	// single-writer discipline of the target's queue.
	RemotePut(ev Event)
}

type slot struct {
	target   Target
	handlers []Handler
}

// Bus is the process-wide publish/subscribe registry. A single Bus instance
// is shared by every pool in a process; all reads and writes to its topic
// map are serialised by mu.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[string]*slot // topic -> pool key -> slot
	logger zerolog.Logger
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		topics: make(map[string]map[string]*slot),
		logger: log.WithComponent("bus"),
	}
}

// Publish delivers payload to every pool subscribed to topic. callerKey
// identifies the pool the publishing service lives in, so the bus can route
// same-pool deliveries through a direct local put and cross-pool deliveries
// through the target's scheduler. Publish is a no-op if topic has no
// subscribers; it never blocks waiting for a handler to run.
func (b *Bus) Publish(callerKey, topic string, payload any) {
	b.mu.RLock()
	pools, ok := b.topics[topic]
	if !ok {
		b.mu.RUnlock()
		return
	}
	targets := make(map[string]Target, len(pools))
	for poolKey, s := range pools {
		targets[poolKey] = s.target
	}
	b.mu.RUnlock()

	metrics.EventsPublishedTotal.WithLabelValues(topic).Inc()

	for poolKey, target := range targets {
		ev := Event{Topic: topic, Payload: payload}
		if poolKey == callerKey {
			target.LocalPut(ev)
		} else {
			target.RemotePut(ev)
		}
	}
}

// Subscribe registers handler for topic against target's pool. If handler
// is subscribed twice from the same pool, both registrations are kept and
// both fire on every publish; duplicate delivery is explicitly allowed, the
// caller controls handler identity.
func (b *Bus) Subscribe(target Target, topic string, handler Handler) {
	b.mu.Lock()
	pools, ok := b.topics[topic]
	if !ok {
		pools = make(map[string]*slot)
		b.topics[topic] = pools
	}
	s, ok := pools[target.Key()]
	if !ok {
		s = &slot{target: target}
		pools[target.Key()] = s
	}
	s.handlers = append(s.handlers, handler)
	count := countHandlers(pools)
	b.mu.Unlock()

	metrics.SubscribersTotal.WithLabelValues(topic).Set(float64(count))
	b.logger.Debug().Str("topic", topic).Str("pool", target.Key()).Msg("handler subscribed")
}

// Unsubscribe removes handler, matched by identity, from topic. It scans
// every pool's slot under topic (not only the caller's own pool) and removes
// the first matching occurrence per slot, mirroring list.remove semantics:
// subscribing the same handler twice and unsubscribing once leaves one
// registration in place. A slot whose handler list becomes empty is pruned;
// the topic entry itself is retained even when it ends up with no slots.
func (b *Bus) Unsubscribe(topic string, handler Handler) {
	target := reflect.ValueOf(handler).Pointer()

	b.mu.Lock()
	pools, ok := b.topics[topic]
	if !ok {
		b.mu.Unlock()
		return
	}

	for poolKey, s := range pools {
		for i, h := range s.handlers {
			if reflect.ValueOf(h).Pointer() == target {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				break
			}
		}
		if len(s.handlers) == 0 {
			delete(pools, poolKey)
		}
	}
	count := countHandlers(pools)
	b.mu.Unlock()

	metrics.SubscribersTotal.WithLabelValues(topic).Set(float64(count))
	b.logger.Debug().Str("topic", topic).Msg("handler unsubscribed")
}

// HandlersFor returns a snapshot copy of the handlers registered for
// (poolKey, topic). Dispatch loops call this so a concurrent Unsubscribe can
// never cause a handler to be invoked after it has been removed: the caller
// already holds its own copy of the list by the time the lock is released.
func (b *Bus) HandlersFor(poolKey, topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pools, ok := b.topics[topic]
	if !ok {
		return nil
	}
	s, ok := pools[poolKey]
	if !ok {
		return nil
	}
	out := make([]Handler, len(s.handlers))
	copy(out, s.handlers)
	return out
}

// DumpRegistry renders a human-readable tree of the current subscription
// state, for diagnostics.
func (b *Bus) DumpRegistry() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topicNames := make([]string, 0, len(b.topics))
	for t := range b.topics {
		topicNames = append(topicNames, t)
	}
	sort.Strings(topicNames)

	var sb strings.Builder
	sb.WriteString("|========================================================\n")
	for _, topic := range topicNames {
		sb.WriteString(fmt.Sprintf("|-- %s\n", topic))
		pools := b.topics[topic]
		poolKeys := make([]string, 0, len(pools))
		for k := range pools {
			poolKeys = append(poolKeys, k)
		}
		sort.Strings(poolKeys)
		for _, poolKey := range poolKeys {
			sb.WriteString(fmt.Sprintf("|  |-- %s\n", poolKey))
			for range pools[poolKey].handlers {
				sb.WriteString("|     |-- handler\n")
			}
		}
	}
	sb.WriteString("|========================================================")
	return sb.String()
}

func countHandlers(pools map[string]*slot) int {
	total := 0
	for _, s := range pools {
		total += len(s.handlers)
	}
	return total
}
