package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneralHubSendToClient(t *testing.T) {
	hub := NewGeneralHub()
	alice := NewClient("alice", nil)
	hub.AddClient(alice)

	assert.True(t, hub.SendToClient("alice", []byte("hello")))
	assert.False(t, hub.SendToClient("bob", []byte("hello")))
	assert.Equal(t, "hello", string(<-alice.Send))

	hub.RemoveClient(alice)
	assert.False(t, hub.Connected("alice"))
	assert.False(t, hub.SendToClient("alice", []byte("again")))
}

func TestGeneralHubReplacesConnection(t *testing.T) {
	hub := NewGeneralHub()
	first := NewClient("alice", nil)
	second := NewClient("alice", nil)
	hub.AddClient(first)
	hub.AddClient(second)

	_, open := <-first.Send
	assert.False(t, open)

	// a late removal of the old connection keeps the new one
	hub.RemoveClient(first)
	assert.True(t, hub.Connected("alice"))
	assert.True(t, hub.SendToClient("alice", []byte("hi")))
}

func TestClientQueueFullBuffer(t *testing.T) {
	c := NewClient("alice", nil)
	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.Queue([]byte("x")))
	}
	assert.False(t, c.Queue([]byte("overflow")))

	c.Close()
	c.Close()
	assert.False(t, c.Queue([]byte("closed")))
}

func TestHubRooms(t *testing.T) {
	hub := NewHub()
	alice := NewClient("alice", nil)
	bob := NewClient("bob", nil)

	room := hub.Join("match-1", alice)
	assert.Same(t, room, hub.Join("match-1", bob))
	assert.Equal(t, 2, room.Size())
	assert.Same(t, room, alice.Room)

	room.Broadcast("alice", []byte("chat"))
	assert.Equal(t, "chat", string(<-bob.Send))
	assert.Empty(t, alice.Send)

	room.Broadcast("", []byte("result"))
	assert.Equal(t, "result", string(<-alice.Send))
	assert.Equal(t, "result", string(<-bob.Send))

	assert.True(t, room.SendTo("bob", []byte("error")))
	assert.False(t, room.SendTo("carol", []byte("error")))

	hub.Leave(alice)
	_, ok := hub.GetRoom("match-1")
	assert.True(t, ok)
	hub.Leave(bob)
	_, ok = hub.GetRoom("match-1")
	assert.False(t, ok)
}
