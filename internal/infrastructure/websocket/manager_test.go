package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectedClient(m *Manager, userID string) *Client {
	client := &Client{UserID: userID, Send: make(chan []byte, 8)}
	m.mutex.Lock()
	m.clients[userID] = client
	m.mutex.Unlock()
	return client
}

func drain(client *Client) []Event {
	var events []Event
	for {
		select {
		case payload := <-client.Send:
			var event Event
			if err := json.Unmarshal(payload, &event); err == nil {
				events = append(events, event)
			}
		default:
			return events
		}
	}
}

func TestEmitReachesUserRoomOnly(t *testing.T) {
	m := NewManager()
	alice := newConnectedClient(m, "alice")
	bob := newConnectedClient(m, "bob")

	m.Emit("alice", EventUnreadUpdate, UnreadUpdateData{ChatID: "chat-1", Count: 3})

	aliceEvents := drain(alice)
	require.Len(t, aliceEvents, 1)
	assert.Equal(t, EventUnreadUpdate, aliceEvents[0].Type)
	assert.Empty(t, drain(bob))
}

func TestEmitToChatRoomRespectsMembershipAndExclusion(t *testing.T) {
	m := NewManager()
	alice := newConnectedClient(m, "alice")
	bob := newConnectedClient(m, "bob")
	carol := newConnectedClient(m, "carol")

	m.JoinChatRoom("chat-1", "alice")
	m.JoinChatRoom("chat-1", "bob")

	m.EmitToChatRoom("chat-1", EventNewMessage, nil, "")
	assert.Len(t, drain(alice), 1)
	assert.Len(t, drain(bob), 1)
	assert.Empty(t, drain(carol))

	m.EmitToChatRoom("chat-1", EventMessagesSeen, nil, "alice")
	assert.Empty(t, drain(alice))
	assert.Len(t, drain(bob), 1)
}

func TestLeaveChatRoomStopsDelivery(t *testing.T) {
	m := NewManager()
	alice := newConnectedClient(m, "alice")

	m.JoinChatRoom("chat-1", "alice")
	m.LeaveChatRoom("chat-1", "alice")

	m.EmitToChatRoom("chat-1", EventNewMessage, nil, "")
	assert.Empty(t, drain(alice))
}

// Fan-out from one goroutine while the client disconnects from another must
// neither panic (send on closed channel) nor race the close.
func TestDisconnectDuringFanOutDoesNotPanic(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			m.SendToUser("alice", []byte("{}"))
		}
	}()

	for i := 0; i < 500; i++ {
		newConnectedClient(m, "alice")
		m.RemoveClient("alice")
	}
	wg.Wait()
}

func TestReconnectDisplacesPreviousConnection(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	first := &Client{UserID: "alice", Send: make(chan []byte, 8)}
	second := &Client{UserID: "alice", Send: make(chan []byte, 8)}
	m.Register <- first
	m.Register <- second

	// The displaced connection's channel is closed so its write pump exits.
	select {
	case _, ok := <-first.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("displaced connection's send channel was never closed")
	}

	// The old pump's deferred unregister must not evict the new connection.
	m.Unregister <- first
	m.Emit("alice", EventUnreadUpdate, UnreadUpdateData{ChatID: "chat-1", Count: 1})

	select {
	case payload := <-second.Send:
		var event Event
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, EventUnreadUpdate, event.Type)
	case <-time.After(time.Second):
		t.Fatal("replacement connection did not receive the event")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	m := NewManager()
	slow := &Client{UserID: "slow", Send: make(chan []byte)}
	m.mutex.Lock()
	m.clients["slow"] = slow
	m.mutex.Unlock()

	// Unbuffered channel with no reader: the send must not block and the
	// client must be evicted.
	m.SendToUser("slow", []byte("{}"))

	m.mutex.RLock()
	_, stillThere := m.clients["slow"]
	m.mutex.RUnlock()
	assert.False(t, stillThere)
}
