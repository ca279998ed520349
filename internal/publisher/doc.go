// Package publisher fans state snapshots and patches out to subscribers.
//
// The Publisher holds the current public snapshot. Every subscriber gets a
// bounded queue and its own delivery goroutine, so a slow or dead observer
// never blocks publishing or other observers. When a queue is full the
// message is dropped for that subscriber only, and the subscriber is sent a
// fresh state:full-update as soon as its queue has room again.
//
// Subscribe and Publish are serialized: a new subscriber receives the full
// snapshot as of the moment it joined and then exactly the patches published
// after it, never a patch that is already reflected in its snapshot.
//
// Message flow for one subscriber:
//
//	Subscribe ──▶ [system:welcome] ──▶ state:full-update ──▶ state:patch ...
package publisher
