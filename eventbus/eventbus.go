// Package eventbus provides a simple in-process publish/subscribe bus. The
// login flow publishes auth events on it, subscribers such as the audit log
// react without slowing down the request that caused them.
package eventbus

import "context"

// Handler is called for every message published on a subscribed topic.
// Handlers may be called concurrently.
type Handler func(ctx context.Context, msg *Message) error

// Message is a published event.
type Message struct {
	ID    string
	Topic string
	Data  any
}

// EventBus provides a simple publish/subscribe interface.
type EventBus interface {
	// Subscribe registers a handler for a topic. Errors returned by the handler
	// are logged.
	Subscribe(topic string, handler Handler)

	// Publish sends data to all subscribers of topic. It returns once the
	// message is queued.
	Publish(topic string, data any)

	// Wait blocks until every queued message has been handled, or ctx is done.
	Wait(ctx context.Context) error

	// Shutdown stops accepting messages and waits for queued ones.
	Shutdown(ctx context.Context) error
}
