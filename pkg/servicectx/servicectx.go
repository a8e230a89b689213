// Package servicectx provides the per-service handle passed into every
// lifecycle step, mediating access to the bus on behalf of the owning pool.
package servicectx

import "github.com/orbitmesh/orbit/pkg/bus"

// Context is carried into every service step. It records the owning pool's
// identity and forwards publish/subscribe/unsubscribe calls to the bus,
// supplying that identity so the bus can route deliveries correctly.
type Context struct {
	poolKey string
	target  bus.Target
	bus     *bus.Bus
}

// New builds a Context for the pool identified by poolKey, whose deliveries
// land on target.
func New(poolKey string, target bus.Target, b *bus.Bus) *Context {
	return &Context{poolKey: poolKey, target: target, bus: b}
}

// PoolKey returns the identity of the owning pool.
func (c *Context) PoolKey() string { return c.poolKey }

// Publish sends payload to every subscriber of topic, in this pool or any
// other.
func (c *Context) Publish(topic string, payload any) {
	c.bus.Publish(c.poolKey, topic, payload)
}

// Subscribe registers handler for topic against this pool.
func (c *Context) Subscribe(topic string, handler bus.Handler) {
	c.bus.Subscribe(c.target, topic, handler)
}

// Unsubscribe removes handler from topic, wherever it is registered.
func (c *Context) Unsubscribe(topic string, handler bus.Handler) {
	c.bus.Unsubscribe(topic, handler)
}

// DumpRegistry returns a human-readable dump of the subscription tree, for
// diagnostics.
func (c *Context) DumpRegistry() string {
	return c.bus.DumpRegistry()
}
