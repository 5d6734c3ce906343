package handlerwrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

// CtxKeyReplyTo carries the reply subject of an inbound request, when the sender set one.
const CtxKeyReplyTo ctxKey = "reply_to"

// CtxKeyCorrelationID carries the correlation id of the message being handled.
const CtxKeyCorrelationID ctxKey = "correlation_id"

// MetadataReplyTo is the message metadata key holding a reply subject.
const MetadataReplyTo = "reply_to"

// MetadataTopic records the topic a message was published to.
const MetadataTopic = "topic"

// Result is one outbound message produced by a typed handler.
type Result struct {
	Topic    string
	Payload  any
	Metadata map[string]string
}

// TypedHandler handles a decoded payload and returns the messages to publish.
type TypedHandler[T any] func(ctx context.Context, payload *T) ([]Result, error)

// NewMessage marshals payload into a watermill message carrying the correlation id.
func NewMessage(correlationID string, payload any) (*message.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	if correlationID == "" {
		correlationID = watermill.NewUUID()
	}
	middleware.SetCorrelationID(correlationID, msg)
	return msg, nil
}

// WrapTyped decodes the inbound payload into T, runs handler inside a span and
// publishes each returned Result. Undecodable payloads are logged and acked; handler
// errors are returned so the router can nack and redeliver.
func WrapTyped[T any](
	handlerName string,
	logger *slog.Logger,
	tracer trace.Tracer,
	publisher message.Publisher,
	handler TypedHandler[T],
) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx, span := tracer.Start(msg.Context(), handlerName, trace.WithAttributes(
			attribute.String("message.uuid", msg.UUID),
		))
		defer span.End()

		correlationID := middleware.MessageCorrelationID(msg)
		if correlationID != "" {
			ctx = WithCorrelationID(ctx, correlationID)
		}
		if rt := msg.Metadata.Get(MetadataReplyTo); rt != "" {
			ctx = context.WithValue(ctx, CtxKeyReplyTo, rt)
		}

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			logger.ErrorContext(ctx, "Dropping undecodable message",
				slog.String("handler", handlerName),
				slog.String("message_uuid", msg.UUID),
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)
			span.SetStatus(codes.Error, "decode failed")
			return nil
		}

		results, err := handler(ctx, payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		for _, r := range results {
			out, err := NewMessage(correlationID, r.Payload)
			if err != nil {
				return err
			}
			for k, v := range r.Metadata {
				out.Metadata.Set(k, v)
			}
			out.Metadata.Set(MetadataTopic, r.Topic)
			if err := publisher.Publish(r.Topic, out); err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to publish to %s: %w", r.Topic, err)
			}
		}
		return nil
	}
}

// ReplyTopic returns the reply subject stored in ctx, or fallback.
func ReplyTopic(ctx context.Context, fallback string) string {
	if rt, ok := ctx.Value(CtxKeyReplyTo).(string); ok && rt != "" {
		return rt
	}
	return fallback
}

// WithCorrelationID stores id so messages published further down carry it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxKeyCorrelationID, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyCorrelationID).(string)
	return id
}
