// Package store defines the persistence interfaces for the research
// platform's entities, along with the shared error taxonomy used by every
// implementation.
//
// The interfaces here are the boundary between the application core and the
// database: services and the orchestrator depend on these interfaces, while
// the concrete PostgreSQL implementations live in
// internal/platform/postgres.
package store
