package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestSendToUserOnlyReachesThatUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	alice := hub.RegisterClient(nil, "alice")
	bob := hub.RegisterClient(nil, "bob")

	require.NoError(t, hub.SendToUser("alice", Event{Type: EventTypeInvite, Payload: map[string]int{"test_center_id": 3}}))

	var got Event
	require.NoError(t, json.Unmarshal(receive(t, alice), &got))
	assert.Equal(t, EventTypeInvite, got.Type)
	assert.False(t, got.SentAt.IsZero())

	select {
	case msg := <-bob.Send:
		t.Fatalf("unexpected message for bob: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := hub.RegisterClient(nil, "a")
	b := hub.RegisterClient(nil, "b")

	require.NoError(t, hub.Broadcast(Event{Type: EventTypeServer, Event: EventShutdown}))

	for _, c := range []*Client{a, b} {
		var got Event
		require.NoError(t, json.Unmarshal(receive(t, c), &got))
		assert.Equal(t, EventTypeServer, got.Type)
		assert.Equal(t, EventShutdown, got.Event)
	}
	assert.Equal(t, 1, hub.ConnectedUsers("a"))
}

func TestStopClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := hub.RegisterClient(nil, "a")
	hub.Stop()
	hub.Stop()

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.NoError(t, hub.SendToUser("a", Event{Type: EventTypeAuth}))
}

func TestRegisterClientAfterStop(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Stop()

	registered := make(chan *Client)
	go func() { registered <- hub.RegisterClient(nil, "late") }()

	select {
	case c := <-registered:
		_, ok := <-c.Send
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("RegisterClient blocked after Stop")
	}
	assert.Equal(t, 0, hub.ConnectedUsers("late"))
}
