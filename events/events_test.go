package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublishRoundTrip delivers the JSON envelope to a subscriber
func TestPublishRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	pub, err := New(ctx, Config{Addr: mr.Addr(), Channel: "sandstone.documents"})
	require.NoError(t, err)
	require.NotNil(t, pub)
	defer pub.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	pubsub := sub.Subscribe(ctx, "sandstone.documents")
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	sent := Event{
		Type:       TypeUpdated,
		DocumentID: "doc-1",
		UserID:     "alice",
		Version:    7,
		Timestamp:  time.Now().UTC(),
	}
	pub.Publish(ctx, sent)

	msg, err := pubsub.ReceiveTimeout(ctx, 2*time.Second)
	require.NoError(t, err)
	payload, ok := msg.(*redis.Message)
	require.True(t, ok)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(payload.Payload), &got))
	assert.Equal(t, TypeUpdated, got.Type)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, int64(7), got.Version)
}

// TestNilPublisher makes every call a no-op
func TestNilPublisher(t *testing.T) {
	var pub *Publisher

	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), Event{Type: TypeCreated})
	})
	assert.NoError(t, pub.Close())
}

// TestNewWithoutAddr returns a nil publisher without error
func TestNewWithoutAddr(t *testing.T) {
	pub, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, pub)
}

// TestNewUnreachable reports the redis connection failure
func TestNewUnreachable(t *testing.T) {
	_, err := New(context.Background(), Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
