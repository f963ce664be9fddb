package socket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/client/store"
	"parley/internal/domain/entity"
	ws "parley/internal/infrastructure/websocket"
)

type recordingConn struct {
	events []ws.Event
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.events = append(c.events, v.(ws.Event))
	return nil
}

func encode(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(ws.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	require.NoError(t, err)
	return raw
}

func newTestRouter() (*Router, *store.Store, *recordingConn) {
	st := store.New()
	conn := &recordingConn{}
	return NewRouter(st, conn, "alice"), st, conn
}

func TestNewMessageFromPeerIsStored(t *testing.T) {
	router, st, _ := newTestRouter()

	message := &entity.Message{ID: "m1", ChatID: "chat-1", SenderID: "bob", Content: "hi", CreatedAt: time.Now()}
	router.Handle(encode(t, ws.EventNewMessage, ws.NewMessageData{Message: message}))

	assert.True(t, st.Has("m1"))
	assert.Equal(t, "hi", st.Get("m1").Content)
}

func TestNewMessageHookFiresOncePerMessage(t *testing.T) {
	router, _, _ := newTestRouter()

	var delivered []string
	router.OnNewMessage = func(m *entity.Message) { delivered = append(delivered, m.ID) }

	message := &entity.Message{ID: "m1", ChatID: "chat-1", SenderID: "bob", Content: "hi", CreatedAt: time.Now()}
	payload := encode(t, ws.EventNewMessage, ws.NewMessageData{Message: message})
	router.Handle(payload)
	router.Handle(payload)

	assert.Equal(t, []string{"m1"}, delivered)
}

func TestOwnEchoIsSuppressed(t *testing.T) {
	router, st, _ := newTestRouter()

	// Our own broadcast comes back; the REST response already stored it.
	message := &entity.Message{ID: "m1", ChatID: "chat-1", SenderID: "alice", Content: "hi", CreatedAt: time.Now()}
	router.Handle(encode(t, ws.EventNewMessage, ws.NewMessageData{Message: message}))

	assert.False(t, st.Has("m1"))
}

func TestEditEventPatchesLoadedMessage(t *testing.T) {
	router, st, _ := newTestRouter()

	original := &entity.Message{ID: "m1", ChatID: "chat-1", SenderID: "bob", Content: "hi", CreatedAt: time.Now()}
	st.Upsert(original)

	edited := *original
	edited.Content = "hi there"
	edited.Edited = true
	router.Handle(encode(t, ws.EventEditMessage, ws.NewMessageData{Message: &edited}))

	stored := st.Get("m1")
	assert.Equal(t, "hi there", stored.Content)
	assert.True(t, stored.Edited)
}

func TestDeleteEventAppliesSentinel(t *testing.T) {
	router, st, _ := newTestRouter()

	original := &entity.Message{ID: "m1", ChatID: "chat-1", SenderID: "bob", Content: "hi", CreatedAt: time.Now()}
	st.Upsert(original)

	deleted := *original
	deleted.Content = entity.DeletedContent
	deleted.Deleted = true
	router.Handle(encode(t, ws.EventDeleteMessage, ws.NewMessageData{Message: &deleted}))

	stored := st.Get("m1")
	assert.True(t, stored.Deleted)
	assert.Equal(t, entity.DeletedContent, stored.Content)
}

func TestUnreadUpdateMirrorsServerCount(t *testing.T) {
	router, st, _ := newTestRouter()

	router.Handle(encode(t, ws.EventUnreadUpdate, ws.UnreadUpdateData{ChatID: "chat-1", Count: 7}))
	assert.Equal(t, int64(7), st.Unread("chat-1"))
}

func TestMessagesSeenMarksWindow(t *testing.T) {
	router, st, _ := newTestRouter()

	st.Upsert(&entity.Message{ID: "m1", ChatID: "chat-1", SenderID: "alice", Content: "hi", DeliveredTo: []string{"bob"}, CreatedAt: time.Now()})
	router.Handle(encode(t, ws.EventMessagesSeen, ws.MessagesSeenData{ChatID: "chat-1", UserID: "bob", Count: 1}))

	stored := st.Get("m1")
	assert.Equal(t, []string{"bob"}, stored.SeenBy)
	assert.Empty(t, stored.DeliveredTo)
}

func TestPresenceEvents(t *testing.T) {
	router, st, _ := newTestRouter()

	router.Handle(encode(t, ws.EventOnlineUsers, []string{"bob", "carol"}))
	assert.True(t, st.IsOnline("bob"))

	router.Handle(encode(t, ws.EventPresenceUpdate, ws.PresenceUpdateData{UserID: "bob", Status: "offline"}))
	assert.False(t, st.IsOnline("bob"))
	assert.True(t, st.IsOnline("carol"))
}

func TestTypingEvents(t *testing.T) {
	router, st, _ := newTestRouter()

	router.Handle(encode(t, ws.EventTyping, ws.TypingData{ChatID: "chat-1", UserID: "bob"}))
	assert.Equal(t, []string{"bob"}, st.TypingUsers("chat-1"))

	// Our own typing relay is ignored.
	router.Handle(encode(t, ws.EventTyping, ws.TypingData{ChatID: "chat-1", UserID: "alice"}))
	assert.Equal(t, []string{"bob"}, st.TypingUsers("chat-1"))

	router.Handle(encode(t, ws.EventStopTyping, ws.TypingData{ChatID: "chat-1", UserID: "bob"}))
	assert.Empty(t, st.TypingUsers("chat-1"))
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	router, st, _ := newTestRouter()

	router.Handle([]byte(`{"type":"unread_update","data":"not-an-object"}`))
	router.Handle([]byte(`not json at all`))

	assert.Zero(t, st.Unread("chat-1"))
}

func TestOnReconnectRejoinsKnownRooms(t *testing.T) {
	router, _, conn := newTestRouter()

	router.JoinChat("chat-1")
	router.JoinChat("chat-2")
	conn.events = nil

	fresh := &recordingConn{}
	router.OnReconnect(fresh)

	var types []string
	joined := map[string]bool{}
	for _, event := range fresh.events {
		types = append(types, event.Type)
		if event.Type == ws.EventJoinGroup {
			joined[event.ChatID] = true
		}
	}

	assert.Contains(t, types, ws.EventJoin)
	assert.Contains(t, types, ws.EventHeartbeat)
	assert.True(t, joined["chat-1"])
	assert.True(t, joined["chat-2"])
	assert.Empty(t, conn.events)
}

func TestTypingIdleTimerSendsStop(t *testing.T) {
	router, _, conn := newTestRouter()

	router.Typing("chat-1")
	require.Len(t, conn.events, 1)
	assert.Equal(t, ws.EventTyping, conn.events[0].Type)

	// Explicit stop cancels the idle timer and sends immediately.
	router.StopTyping("chat-1")
	require.Len(t, conn.events, 2)
	assert.Equal(t, ws.EventStopTyping, conn.events[1].Type)
}
