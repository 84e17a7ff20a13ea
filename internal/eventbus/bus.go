package eventbus

import "context"

// Handler consumes one event. Returning an error triggers the bus's retry
// policy; after the attempts are spent the event is dropped (in-process) or
// dead-lettered (AMQP).
type Handler func(ctx context.Context, ev Event) error

// Bus is the dispatch capability the unit of work publishes through after a
// commit. Both the in-process and the AMQP implementations satisfy it.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	PublishAll(ctx context.Context, events []Event) error
	Subscribe(eventType, name string, h Handler) error
	Unsubscribe(eventType, name string)
	Healthy() bool
	Shutdown(ctx context.Context) error
}
