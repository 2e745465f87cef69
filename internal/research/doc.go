// Package research contains the client for the external generation
// service. The service answers a research request with a stream of
// boundary-delimited frames; this package opens the call, decodes the
// frames (buffering partial frames across reads), and reduces the content
// fragments into one final document.
//
// Storage of the result is the caller's responsibility: the client has no
// side effects beyond network I/O.
package research
