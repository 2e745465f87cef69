// Package orchestrator drives research jobs to completion one cycle at a
// time. A tick claims a batch of pending tasks, dispatches them
// concurrently to the generation service, writes outcomes back through the
// task store, recomputes job counters, and reports whether the job is
// finished or needs another cycle.
//
// Ticks are idempotent at the job level and at-least-once at the task
// level: they can be invoked concurrently or redundantly for the same job
// without corruption, because the task claim is an atomic conditional
// update that partitions the pending set between racing ticks.
//
// Continuation is an explicit decision returned by the tick, consumed by
// the in-process Runner (and by any external cron trigger), never a
// network self-invocation.
package orchestrator
