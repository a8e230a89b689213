/*
Package scheduler implements each pool's cooperative task scheduler.

Each pool needs a single-writer thread for its own state (its inbound
queue, its services) while still letting independent work run
concurrently. The scheduler splits those two responsibilities into two
calls:

  - Go schedules a task onto a bounded worker pool (github.com/panjf2000/ants)
    and returns once a worker has accepted it, blocking only while every
    worker is busy. Use it for anything that can run concurrently
    with everything else the pool is doing: handler invocations, service
    start/stop steps, the dispatch loop itself.

  - Submit hands a closure to the scheduler's dedicated mailbox-loop
    goroutine and blocks until that goroutine has run it. Run locks that
    goroutine to its OS thread for its whole lifetime, so every Submit call
    is guaranteed to execute on the same thread as every other Submit call
    to the same scheduler — the one guarantee a cross-pool publish needs to
    append to a pool's inbound queue without a second writer ever touching
    it concurrently.
*/
package scheduler
