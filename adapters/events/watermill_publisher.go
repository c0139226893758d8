package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/layer-3/wallet2fa/core"
)

const DefaultTopic = "wallet2fa.authenticated"

// AuthenticatedEvent announces a successful sign-in
type AuthenticatedEvent struct {
	RecordID   string    `json:"record_id"`
	Address    string    `json:"address"`
	Timestamp  time.Time `json:"timestamp"`
	Commitment string    `json:"commitment"`
	Nullifier  string    `json:"nullifier"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher. An empty topic means DefaultTopic.
func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishAuthenticated publishes an authenticated event for the record
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, record *core.AuthenticationRecord) error {
	event := AuthenticatedEvent{
		RecordID:  record.ID,
		Address:   record.Address,
		Timestamp: record.Timestamp,
	}
	if record.Proof != nil {
		event.Commitment = record.Proof.Commitment
		event.Nullifier = record.Proof.Nullifier
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(record.ID, payload)
	msg.Metadata.Set("address", record.Address)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards events when publishing is disabled
type NopPublisher struct{}

func (NopPublisher) PublishAuthenticated(context.Context, *core.AuthenticationRecord) error {
	return nil
}
