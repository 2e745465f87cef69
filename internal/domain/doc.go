// Package domain contains the core entities of the research platform:
// bulk research jobs, the per-subject tasks that make up a job, and the
// account signal model (preferences and detected signals).
//
// Domain types carry their own validation and know nothing about
// persistence, transport, or the services that operate on them.
package domain
