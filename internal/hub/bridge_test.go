package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitEvent(t *testing.T, client Client) Event {
	t.Helper()
	select {
	case payload := <-client:
		var event Event
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered through the bridge")
		return Event{}
	}
}

func TestAttachRedisRoundTrip(t *testing.T) {
	s := miniredis.RunT(t)

	h := NewHub()
	require.NoError(t, h.AttachRedis("redis://"+s.Addr()))
	defer h.DetachRedis()

	client := make(Client, 1)
	h.Subscribe(StreamPairing, 7, client)

	h.Publish(StreamPairing, 7, Success("match_found", nil))

	event := awaitEvent(t, client)
	assert.Equal(t, "match_found", event.EventType)
}

func TestBridgeDeliversCrossHub(t *testing.T) {
	s := miniredis.RunT(t)

	publisher := NewHub()
	require.NoError(t, publisher.AttachRedis("redis://"+s.Addr()))
	defer publisher.DetachRedis()

	receiver := NewHub()
	require.NoError(t, receiver.AttachRedis("redis://"+s.Addr()))
	defer receiver.DetachRedis()

	client := make(Client, 1)
	receiver.Subscribe(StreamNotification, 9, client)

	publisher.Publish(StreamNotification, 9, Success("new_notification", nil))

	event := awaitEvent(t, client)
	assert.Equal(t, "new_notification", event.EventType)
}

func TestDetachRedisFallsBackToLocalDelivery(t *testing.T) {
	s := miniredis.RunT(t)

	h := NewHub()
	require.NoError(t, h.AttachRedis("redis://"+s.Addr()))
	h.DetachRedis()

	client := make(Client, 1)
	h.Subscribe(StreamDiscussion, 7, client)

	h.Publish(StreamDiscussion, 7, Success("new_message", nil))

	assert.Equal(t, "new_message", awaitEvent(t, client).EventType)
}

func TestAttachRedisRejectsBadURL(t *testing.T) {
	h := NewHub()
	assert.Error(t, h.AttachRedis("not-a-url"))
}

func TestParseChannel(t *testing.T) {
	stream, userID, err := parseChannel("hub:pairing:42")
	require.NoError(t, err)
	assert.Equal(t, StreamPairing, stream)
	assert.Equal(t, uint(42), userID)

	_, _, err = parseChannel("hub:pairing")
	assert.Error(t, err)

	_, _, err = parseChannel("hub:pairing:notanumber")
	assert.Error(t, err)
}
