package eventbus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := NewMemory(logger)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, bus.CreateStream(ctx, "LEDGER", "ledger.>"))
	assert.Nil(t, bus.JetStream())

	queued, err := bus.Subscribe(ctx, "ledger.test")
	require.NoError(t, err)
	fanned, err := bus.Broadcast().Subscribe(ctx, "ledger.test")
	require.NoError(t, err)

	require.NoError(t, bus.Publish("ledger.test", message.NewMessage("m-1", []byte(`{"ok":true}`))))

	for _, ch := range []<-chan *message.Message{queued, fanned} {
		select {
		case msg := <-ch:
			assert.Equal(t, "m-1", msg.UUID)
			assert.JSONEq(t, `{"ok":true}`, string(msg.Payload))
			msg.Ack()
		case <-ctx.Done():
			t.Fatal("message not delivered")
		}
	}
}
