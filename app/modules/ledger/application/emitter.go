package ledgerservice

import (
	"context"
	"fmt"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/score-ledger/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Emitter delivers ledger notifications to observers.
type Emitter interface {
	EmitScoreSubmitted(ctx context.Context, payload ledgerdomain.ScoreSubmittedPayloadV1) error
	EmitPauseChanged(ctx context.Context, payload ledgerdomain.PauseChangedPayloadV1) error
}

// PublisherEmitter publishes notifications straight onto the event bus.
type PublisherEmitter struct {
	publisher message.Publisher
}

// NewPublisherEmitter returns an Emitter backed by publisher.
func NewPublisherEmitter(publisher message.Publisher) *PublisherEmitter {
	return &PublisherEmitter{publisher: publisher}
}

func (e *PublisherEmitter) EmitScoreSubmitted(ctx context.Context, payload ledgerdomain.ScoreSubmittedPayloadV1) error {
	return e.publish(ctx, ledgerdomain.ScoreSubmittedV1, payload)
}

func (e *PublisherEmitter) EmitPauseChanged(ctx context.Context, payload ledgerdomain.PauseChangedPayloadV1) error {
	topic := ledgerdomain.LedgerUnpausedV1
	if payload.Paused {
		topic = ledgerdomain.LedgerPausedV1
	}
	return e.publish(ctx, topic, payload)
}

func (e *PublisherEmitter) publish(ctx context.Context, topic string, payload any) error {
	msg, err := handlerwrapper.NewMessage(handlerwrapper.CorrelationID(ctx), payload)
	if err != nil {
		return err
	}
	msg.Metadata.Set(handlerwrapper.MetadataTopic, topic)
	msg.SetContext(ctx)
	if err := e.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// NopEmitter drops every notification.
type NopEmitter struct{}

func (NopEmitter) EmitScoreSubmitted(context.Context, ledgerdomain.ScoreSubmittedPayloadV1) error {
	return nil
}

func (NopEmitter) EmitPauseChanged(context.Context, ledgerdomain.PauseChangedPayloadV1) error {
	return nil
}
