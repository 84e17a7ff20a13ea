package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.uber.org/zap"
)

// Metadata keys carried on every published message.
const (
	metaEventType     = "event_type"
	metaAggregateType = "aggregate_type"
	metaAggregateID   = "aggregate_id"
	metaOccurredAt    = "occurred_at"
)

// AMQPBus bridges the bus onto a durable RabbitMQ pub/sub topology. Topics
// are event types; each subscriber gets a durable queue named after the
// topic. Handler failures are retried with backoff and then parked on the
// dead-letter topic instead of blocking the queue.
type AMQPBus struct {
	Logger *zap.Logger

	conn       *amqp.ConnectionWrapper
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	mu      sync.RWMutex
	muted   map[string]bool // handler name -> unsubscribed
	started bool
}

type AMQPOptions struct {
	URL             string
	MaxRetries      int
	RetryBackoff    time.Duration
	DeadLetterTopic string
}

func NewAMQP(logger *zap.Logger, opts AMQPOptions) (*AMQPBus, error) {
	wmLogger := newWatermillZap(logger)

	amqpConfig := amqp.NewDurablePubSubConfig(opts.URL, amqp.GenerateQueueNameTopicName)
	conn, err := amqp.NewConnection(amqp.ConnectionConfig{
		AmqpURI:   opts.URL,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, wmLogger)
	if err != nil {
		return nil, err
	}

	publisher, err := amqp.NewPublisherWithConnection(amqpConfig, wmLogger, conn)
	if err != nil {
		return nil, err
	}
	subscriber, err := amqp.NewSubscriberWithConnection(amqpConfig, wmLogger, conn)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      maxRetries,
		InitialInterval: backoff,
		MaxInterval:     16 * backoff,
		Logger:          wmLogger,
	}.Middleware)
	if opts.DeadLetterTopic != "" {
		poison, err := middleware.PoisonQueue(publisher, opts.DeadLetterTopic)
		if err != nil {
			return nil, err
		}
		router.AddMiddleware(poison)
	}
	router.AddMiddleware(middleware.Recoverer)

	return &AMQPBus{
		Logger:     logger,
		conn:       conn,
		publisher:  publisher,
		subscriber: subscriber,
		router:     router,
		muted:      make(map[string]bool),
	}, nil
}

// Subscribe registers a durable consumer. All subscriptions must be in
// place before Start; later Unsubscribe calls mute the handler in place.
func (b *AMQPBus) Subscribe(eventType, name string, h Handler) error {
	if b == nil || h == nil {
		return nil
	}
	b.router.AddNoPublisherHandler(name, eventType, b.subscriber,
		func(msg *message.Message) error {
			b.mu.RLock()
			skip := b.muted[name]
			b.mu.RUnlock()
			if skip {
				return nil
			}
			ev, err := decodeMessage(msg)
			if err != nil {
				if b.Logger != nil {
					b.Logger.Warn("dropping undecodable event message",
						zap.String("handler", name),
						zap.String("message_id", msg.UUID),
						zap.Error(err))
				}
				return nil
			}
			return h(msg.Context(), ev)
		})
	return nil
}

func (b *AMQPBus) Unsubscribe(_, name string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.muted[name] = true
	b.mu.Unlock()
}

// Start runs the router until ctx is cancelled.
func (b *AMQPBus) Start(ctx context.Context) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	return b.router.Run(ctx)
}

func (b *AMQPBus) Publish(_ context.Context, ev Event) error {
	if b == nil {
		return nil
	}
	msg := message.NewMessage(ev.ID, []byte(ev.Payload))
	msg.Metadata.Set(metaEventType, ev.Type)
	msg.Metadata.Set(metaAggregateType, ev.AggregateType)
	msg.Metadata.Set(metaAggregateID, ev.AggregateID)
	msg.Metadata.Set(metaOccurredAt, ev.OccurredAt.UTC().Format(time.RFC3339Nano))
	return b.publisher.Publish(ev.Type, msg)
}

func (b *AMQPBus) PublishAll(ctx context.Context, events []Event) error {
	for _, ev := range events {
		if err := b.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (b *AMQPBus) Healthy() bool {
	if b == nil || b.conn == nil {
		return false
	}
	return b.conn.IsConnected()
}

func (b *AMQPBus) Shutdown(ctx context.Context) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	started := b.started
	b.mu.RUnlock()
	if started {
		if err := b.router.Close(); err != nil {
			return err
		}
	}
	if err := b.publisher.Close(); err != nil {
		return err
	}
	if err := b.subscriber.Close(); err != nil {
		return err
	}
	return b.conn.Close()
}

func decodeMessage(msg *message.Message) (Event, error) {
	ev := Event{
		ID:            msg.UUID,
		Type:          msg.Metadata.Get(metaEventType),
		AggregateType: msg.Metadata.Get(metaAggregateType),
		AggregateID:   msg.Metadata.Get(metaAggregateID),
		Payload:       json.RawMessage(msg.Payload),
	}
	if raw := msg.Metadata.Get(metaOccurredAt); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Event{}, err
		}
		ev.OccurredAt = ts
	}
	return ev, nil
}

// watermillZap adapts zap to watermill's logger interface.
type watermillZap struct {
	logger *zap.Logger
}

func newWatermillZap(logger *zap.Logger) watermill.LoggerAdapter {
	if logger == nil {
		return watermill.NopLogger{}
	}
	return &watermillZap{logger: logger}
}

func (l *watermillZap) fields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (l *watermillZap) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(l.fields(fields), zap.Error(err))...)
}

func (l *watermillZap) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, l.fields(fields)...)
}

func (l *watermillZap) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.fields(fields)...)
}

func (l *watermillZap) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.fields(fields)...)
}

func (l *watermillZap) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillZap{logger: l.logger.With(l.fields(fields)...)}
}
