package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/relaychat/apiserver/config"
	"github.com/relaychat/apiserver/types"
)

// Event types carried on the wire.
const (
	TypeMessageCreated = "message.created"
	TypeMessageUpdated = "message.updated"
)

// MessageEvent is the JSON payload published for message writes.
// Downstream consumers (analytics, moderation) key off Type.
type MessageEvent struct {
	Type      string    `json:"type"`
	MessageID uuid.UUID `json:"message_id"`
	ChatID    uuid.UUID `json:"chat_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	SentAt    time.Time `json:"sent_at"`
}

// Handler processes a received event payload. Return an error to signal
// a retry/nack.
type Handler func(ctx context.Context, id string, data []byte, attrs map[string]string) error

// Backend defines the broker-agnostic operations used by the publisher.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// NewBackend constructs the broker backend named by cfg.Backend. An
// empty backend name disables events and yields nil.
func NewBackend(ctx context.Context, cfg config.EventsConfig) (Backend, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return backend, nil
	case "pubsub":
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// Consume subscribes to channel and invokes fn for each decoded event.
// Payloads that fail to decode are logged and acked so the broker does
// not redeliver them forever.
func Consume(ctx context.Context, backend Backend, channel string, fn func(context.Context, MessageEvent) error) error {
	return backend.Subscribe(ctx, channel, func(ctx context.Context, id string, data []byte, attrs map[string]string) error {
		var event MessageEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("events: decode %s: %v", id, err)
			return nil
		}
		return fn(ctx, event)
	})
}

// Publisher emits message events to a configured channel. Publishing is
// fire-and-forget: broker failures are logged and never surface to the
// request that triggered them.
type Publisher struct {
	backend Backend
	channel string
}

// NewPublisher constructs a Publisher emitting on the named channel.
func NewPublisher(backend Backend, channel string) *Publisher {
	return &Publisher{backend: backend, channel: channel}
}

// MessageCreated publishes a message.created event.
func (p *Publisher) MessageCreated(ctx context.Context, message types.Message) {
	p.publish(ctx, TypeMessageCreated, message)
}

// MessageUpdated publishes a message.updated event.
func (p *Publisher) MessageUpdated(ctx context.Context, message types.Message) {
	p.publish(ctx, TypeMessageUpdated, message)
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}

func (p *Publisher) publish(ctx context.Context, eventType string, message types.Message) {
	event := MessageEvent{
		Type:      eventType,
		MessageID: message.ID,
		ChatID:    message.ChatID,
		UserID:    message.UserID,
		Role:      message.Role,
		SentAt:    message.SentAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal %s: %v", eventType, err)
		return
	}
	attrs := map[string]string{"type": eventType}
	if _, err := p.backend.Publish(ctx, p.channel, data, attrs); err != nil {
		log.Printf("events: publish %s: %v", eventType, err)
	}
}
