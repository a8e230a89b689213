/*
Package orchestrator assembles pools into a single running process.

Orchestrator is a deliberate singleton: exactly one may be constructed per
process, since a process has exactly one top-level runner.
Run starts every configured pool.Pool concurrently, waits for a cancelled
context (including the process's own SIGINT/SIGTERM), and then stops every
pool before returning.
*/
package orchestrator
