// Package events provides a small in-process publish/subscribe mechanism
// used to decouple job finalization from its side effects: the
// orchestrator emits a completion event, and registered handlers (e.g. the
// notification forwarder) react without the orchestrator knowing them.
package events
