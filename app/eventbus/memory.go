package eventbus

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats.go/jetstream"
)

// memoryBus is an in-process EventBus for single-node deployments and tests.
type memoryBus struct {
	*gochannel.GoChannel
}

// NewMemory returns an EventBus that delivers messages inside the process.
func NewMemory(logger *slog.Logger) EventBus {
	return &memoryBus{
		GoChannel: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, watermill.NewSlogLogger(logger)),
	}
}

// Broadcast returns the bus itself; gochannel fans out to every subscriber.
func (b *memoryBus) Broadcast() message.Subscriber { return b.GoChannel }

func (b *memoryBus) CreateStream(context.Context, string, ...string) error { return nil }

func (b *memoryBus) JetStream() jetstream.JetStream { return nil }
