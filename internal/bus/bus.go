// Package bus implements the in-process publish/subscribe backbone.
//
// Delivery is synchronous and runs in the order handlers were registered.
// A handler that publishes causes strictly nested, depth-first delivery.
// Handler failures are isolated at the publish site so one bad consumer
// cannot abort delivery to its siblings or unwind the feed loop.
package bus

import (
	"github.com/yanun0323/logs"
)

// Handler consumes one event payload. Payload types per event name are
// listed in internal/model/events.go.
type Handler func(payload any)

// Token identifies a subscription for removal. Go funcs are not
// comparable, so unsubscribing is by token rather than handler identity.
type Token int

type subscription struct {
	token Token
	fn    Handler
}

// Bus is an explicit pub/sub instance injected into every component; there
// is no process-wide singleton.
type Bus struct {
	seq      Token
	handlers map[string][]subscription
}

func New() *Bus {
	return &Bus{handlers: make(map[string][]subscription)}
}

// Subscribe registers a handler for an event name and returns its token.
func (b *Bus) Subscribe(event string, fn Handler) Token {
	b.seq++
	b.handlers[event] = append(b.handlers[event], subscription{token: b.seq, fn: fn})
	return b.seq
}

// Unsubscribe removes the subscription identified by token.
func (b *Bus) Unsubscribe(event string, token Token) {
	subs := b.handlers[event]
	kept := make([]subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.token != token {
			kept = append(kept, sub)
		}
	}
	b.handlers[event] = kept
}

// Publish delivers payload to every handler registered for event, in
// registration order. Handlers added or removed during delivery take
// effect from the next publish.
func (b *Bus) Publish(event string, payload any) {
	subs := b.handlers[event]
	for _, sub := range subs {
		invoke(event, sub.fn, payload)
	}
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.handlers = make(map[string][]subscription)
}

func invoke(event string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("event %q handler failed: %+v", event, r)
		}
	}()
	fn(payload)
}
