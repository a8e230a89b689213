/*
Package bus implements the process-wide publish/subscribe registry that
routes messages between pools.

# Architecture

	┌──────────────────────── BUS ──────────────────────────────┐
	│                                                             │
	│   topics: map[topic] -> map[poolKey] -> slot                │
	│                                                             │
	│   slot { target Target; handlers []Handler }               │
	│                                                             │
	│   Publish(callerKey, topic, payload)                        │
	│     -> for each (poolKey, slot) under topic:                │
	│          same pool as caller?  slot.target.LocalPut         │
	│          different pool?       slot.target.RemotePut        │
	└─────────────────────────────────────────────────────────────┘

A Bus never touches a queue or scheduler directly. Each subscribing pool
registers a Target — usually itself — and the bus only ever calls LocalPut or
RemotePut on it. This keeps the bus free of any dependency on how a pool
schedules work, and lets pkg/pool own the cross-thread hand-off entirely.

# Ordering

Within a single target pool, events enqueued by one publisher arrive in the
order Publish was called, because RemotePut blocks until the put has been
accepted by the target's scheduler before Publish moves on to the next
target. No ordering is promised across different target pools or between
distinct publishers.

# Unsubscribe scope

Unsubscribe scans every pool's slot under a topic and removes the handler by
identity wherever it's found, not just the caller's own pool, since a
handler reference may be shared and cancelled from any pool that holds it.
Removing a handler that was subscribed twice from the same pool only drops
one occurrence.
*/
package bus
