// Package mocks provides shared mock implementations of the store and
// research interfaces for testing. Each mock carries optional Fn fields
// that override individual methods, backed by a thread-safe in-memory
// default implementation faithful enough to exercise claim exclusivity
// and retry semantics without a database.
package mocks
