package publisher

import (
	"github.com/nerrad567/bosun-core/internal/patch"
)

// Message types.
const (
	TypeWelcome    = "system:welcome"
	TypeFullUpdate = "state:full-update"
	TypePatch      = "state:patch"

	// TypeResync is sent by clients to request a new full update.
	TypeResync = "state:resync"
)

// Message is the envelope observers receive.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// FullUpdate wraps a snapshot.
func FullUpdate(snapshot *patch.Object) Message {
	if snapshot == nil {
		snapshot = patch.NewObject()
	}
	return Message{Type: TypeFullUpdate, Data: snapshot}
}

// Patch wraps an operation list.
func Patch(ops []patch.Operation) Message {
	return Message{Type: TypePatch, Data: ops}
}

// Observer receives messages for one subscription. Deliver is only ever
// called from that subscription's goroutine, in order. Returning an error
// ends the subscription.
type Observer interface {
	Deliver(Message) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Message) error

// Deliver implements Observer.
func (f ObserverFunc) Deliver(m Message) error { return f(m) }
