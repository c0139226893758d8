package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/wallet2fa/core"
)

func TestPublishAuthenticated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	record := &core.AuthenticationRecord{
		ID:        "5f1d7a0e-7b8c-4f61-9a35-1f1c0e2d3b4a",
		Address:   "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Proof:     &core.ProofArtifact{Commitment: "c0ffee", Nullifier: "beef"},
		Verified:  true,
	}

	pub := NewWatermillPublisher(pubSub, "")
	require.NoError(t, pub.PublishAuthenticated(ctx, record))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, record.ID, msg.UUID)
		assert.Equal(t, record.Address, msg.Metadata.Get("address"))

		var event AuthenticatedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, record.Address, event.Address)
		assert.Equal(t, "c0ffee", event.Commitment)
		assert.Equal(t, "beef", event.Nullifier)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	require.NoError(t, pubSub.Close())

	pub := NewWatermillPublisher(pubSub, "custom.topic")
	err := pub.PublishAuthenticated(context.Background(), &core.AuthenticationRecord{ID: "x", Address: "0x1"})
	assert.Error(t, err)
}
