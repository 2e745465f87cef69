// Package api implements the HTTP layer: request models, handlers, and
// the mapping from internal errors to sanitized HTTP responses.
package api
