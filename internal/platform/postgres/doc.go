// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in internal/store.
//
// Every mutating task operation is a single conditional UPDATE: the claim
// uses FOR UPDATE SKIP LOCKED with a status re-check so concurrent claimers
// partition the pending set, and completion/retry writes are conditioned on
// the row still being in the expected state. No multi-row transaction spans
// the job and task tables; job counters are recomputed from task state.
package postgres
