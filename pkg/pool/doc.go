/*
Package pool implements the execution unit that owns a set of services, a
scheduler, and an inbound event queue.

A Pool is the unit of isolation: every service it owns shares its scheduler
and its single dispatch loop. The dispatch loop takes events off the inbound
queue in the order they were enqueued, but each handler invocation then runs
as an independent concurrent task on the scheduler, so handlers are not
serialized against each other, within the pool or across pools. Run starts the pool and blocks the calling
goroutine for the pool's entire lifetime; Stop, called from elsewhere,
unwinds it in the mirror order of startup: cancel dispatch, stop the
scheduler's mailbox loop, terminate services in reverse registration order,
release the scheduler.

Pool implements bus.Target so the bus can route a publish to it without
depending on pool or scheduler internals: LocalPut is used when the
publisher is one of this pool's own services, RemotePut when it is not.
*/
package pool
