package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventBus is the publisher/subscriber pair the ledger runs on.
type EventBus interface {
	message.Publisher
	message.Subscriber

	// Broadcast returns a subscriber on which every instance receives every message,
	// as opposed to the queue-grouped Subscribe.
	Broadcast() message.Subscriber

	// CreateStream makes sure a stream named name captures subjects.
	CreateStream(ctx context.Context, name string, subjects ...string) error

	// JetStream exposes the underlying JetStream context, or nil for in-process buses.
	JetStream() jetstream.JetStream
}

// NATSConfig configures the JetStream-backed bus.
type NATSConfig struct {
	URL        string
	QueueGroup string
	AckWait    time.Duration
}

// natsBus implements EventBus over NATS JetStream.
type natsBus struct {
	publisher  *nats.Publisher
	subscriber *nats.Subscriber
	broadcast  *nats.Subscriber
	js         jetstream.JetStream
	conn       *nc.Conn
	logger     *slog.Logger
}

// NewNATS connects to NATS and builds watermill publishers and subscribers on JetStream.
func NewNATS(ctx context.Context, cfg NATSConfig, logger *slog.Logger) (EventBus, error) {
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = "score-ledger"
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}

	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(time.Second),
		nc.MaxReconnects(-1),
		nc.ErrorHandler(func(_ *nc.Conn, s *nc.Subscription, err error) {
			if s != nil {
				logger.Error("NATS subscription error", slog.String("subject", s.Subject), slog.Any("error", err))
				return
			}
			logger.Error("NATS connection error", slog.Any("error", err))
		}),
	}

	conn, err := nc.Connect(cfg.URL, options...)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to NATS", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &nats.NATSMarshaler{}
	// Streams are provisioned explicitly by CreateStream.
	jsConfig := nats.JetStreamConfig{
		Disabled:      false,
		AutoProvision: false,
		SubscribeOptions: []nc.SubOpt{
			nc.DeliverNew(),
			nc.AckExplicit(),
		},
		TrackMsgId: true,
	}

	publisher, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: options,
		Marshaler:   marshaler,
		JetStream:   jsConfig,
	}, wmLogger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create watermill publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      options,
		Unmarshaler:      marshaler,
		JetStream:        jsConfig,
	}, wmLogger)
	if err != nil {
		_ = publisher.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to create watermill subscriber: %w", err)
	}

	broadcast, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      options,
		Unmarshaler:      marshaler,
		JetStream:        jsConfig,
	}, wmLogger)
	if err != nil {
		_ = subscriber.Close()
		_ = publisher.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to create watermill broadcast subscriber: %w", err)
	}

	logger.InfoContext(ctx, "Connected to NATS JetStream", slog.String("url", cfg.URL))
	return &natsBus{
		publisher:  publisher,
		subscriber: subscriber,
		broadcast:  broadcast,
		js:         js,
		conn:       conn,
		logger:     logger,
	}, nil
}

func (b *natsBus) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		if msg.UUID == "" {
			msg.UUID = watermill.NewUUID()
		}
	}
	if err := b.publisher.Publish(topic, msgs...); err != nil {
		b.logger.Error("Failed to publish message", slog.String("topic", topic), slog.Any("error", err))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *natsBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.logger.InfoContext(ctx, "Subscribing to topic", slog.String("topic", topic))
	return b.subscriber.Subscribe(ctx, topic)
}

func (b *natsBus) Broadcast() message.Subscriber { return b.broadcast }

func (b *natsBus) JetStream() jetstream.JetStream { return b.js }

// CreateStream creates the stream or extends its subject list.
func (b *natsBus) CreateStream(ctx context.Context, name string, subjects ...string) error {
	b.logger.InfoContext(ctx, "Creating stream", slog.String("stream_name", name), slog.Any("subjects", subjects))

	stream, err := b.js.Stream(ctx, name)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := b.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:      name,
			Subjects:  subjects,
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
		}); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		b.logger.InfoContext(ctx, "Stream created", slog.String("stream_name", name))
		return nil
	case err != nil:
		return fmt.Errorf("failed to check if stream exists: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	existing := make(map[string]bool, len(info.Config.Subjects))
	for _, s := range info.Config.Subjects {
		existing[s] = true
	}
	missing := false
	for _, s := range subjects {
		if !existing[s] {
			info.Config.Subjects = append(info.Config.Subjects, s)
			missing = true
		}
	}
	if !missing {
		b.logger.InfoContext(ctx, "Stream already exists with subjects", slog.String("stream_name", name))
		return nil
	}

	if _, err := b.js.UpdateStream(ctx, info.Config); err != nil {
		return fmt.Errorf("failed to update stream with new subjects: %w", err)
	}
	b.logger.InfoContext(ctx, "Stream updated with new subjects", slog.String("stream_name", name))
	return nil
}

// Close closes all NATS and watermill resources.
func (b *natsBus) Close() error {
	if err := b.publisher.Close(); err != nil {
		b.logger.Error("Error closing NATS publisher", slog.Any("error", err))
	}
	if err := b.subscriber.Close(); err != nil {
		b.logger.Error("Error closing NATS subscriber", slog.Any("error", err))
	}
	if err := b.broadcast.Close(); err != nil {
		b.logger.Error("Error closing NATS broadcast subscriber", slog.Any("error", err))
	}
	b.conn.Close()
	return nil
}
