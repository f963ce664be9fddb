package socket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"parley/internal/client/store"
	"parley/internal/domain/entity"
	ws "parley/internal/infrastructure/websocket"
)

// Conn is the outbound half of the socket the router writes to.
type Conn interface {
	WriteJSON(v interface{}) error
}

// typingIdle is how long after the last keystroke a stopTyping is sent.
const typingIdle = 1500 * time.Millisecond

// Router applies server events to the local store and owns the client's
// outbound socket traffic. Inbound events are normalized through the same
// typed payloads the server emits; a payload that fails to decode is logged
// and dropped rather than poisoning the store.
type Router struct {
	mu          sync.Mutex
	store       *store.Store
	conn        Conn
	userID      string
	joinedChats map[string]bool
	typingTimer map[string]*time.Timer

	// OnNewMessage, when set, fires for every stored peer message, e.g. to
	// send a delivered receipt.
	OnNewMessage func(message *entity.Message)
}

func NewRouter(st *store.Store, conn Conn, userID string) *Router {
	return &Router{
		store:       st,
		conn:        conn,
		userID:      userID,
		joinedChats: map[string]bool{},
		typingTimer: map[string]*time.Timer{},
	}
}

// Handle dispatches one server event.
func (r *Router) Handle(raw []byte) {
	var event ws.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("Router Handle Error: bad event envelope: %v", err)
		return
	}

	switch event.Type {
	case ws.EventNewMessage:
		r.handleNewMessage(&event)
	case ws.EventEditMessage, ws.EventDeleteMessage, ws.EventMessageReaction:
		r.handleMessageUpdate(&event)
	case ws.EventUnreadUpdate:
		r.handleUnreadUpdate(&event)
	case ws.EventMessagesSeen:
		r.handleMessagesSeen(&event)
	case ws.EventOnlineUsers:
		r.handleOnlineUsers(&event)
	case ws.EventPresenceUpdate:
		r.handlePresenceUpdate(&event)
	case ws.EventTyping:
		r.handleTyping(&event, true)
	case ws.EventStopTyping:
		r.handleTyping(&event, false)
	case ws.EventError:
		log.Printf("Router: server error event: %v", event.Data)
	default:
		log.Printf("Router: unknown event type %q", event.Type)
	}
}

// handleNewMessage inserts a broadcast message unless it is the echo of our
// own send: the REST response already put that message in the store, and the
// idempotent insert would be a no-op anyway, so we drop it early.
func (r *Router) handleNewMessage(event *ws.Event) {
	var data ws.NewMessageData
	if !decodeData(event, &data) || data.Message == nil {
		return
	}
	if data.Message.SenderID == r.userID {
		return
	}
	if r.store.Upsert(data.Message) && r.OnNewMessage != nil {
		r.OnNewMessage(data.Message)
	}
}

func (r *Router) handleMessageUpdate(event *ws.Event) {
	var data ws.NewMessageData
	if !decodeData(event, &data) || data.Message == nil {
		return
	}
	// Apply is a no-op when the message is not loaded locally.
	r.store.Apply(data.Message)
}

func (r *Router) handleUnreadUpdate(event *ws.Event) {
	var data ws.UnreadUpdateData
	if !decodeData(event, &data) {
		return
	}
	r.store.SetUnread(data.ChatID, data.Count)
}

func (r *Router) handleMessagesSeen(event *ws.Event) {
	var data ws.MessagesSeenData
	if !decodeData(event, &data) {
		return
	}
	r.store.MarkSeen(data.ChatID, data.UserID)
}

func (r *Router) handleOnlineUsers(event *ws.Event) {
	var userIDs []string
	if !decodeData(event, &userIDs) {
		return
	}
	r.store.SetOnlineUsers(userIDs)
}

func (r *Router) handlePresenceUpdate(event *ws.Event) {
	var data ws.PresenceUpdateData
	if !decodeData(event, &data) {
		return
	}
	r.store.SetPresence(data.UserID, data.Status == "online")
}

func (r *Router) handleTyping(event *ws.Event, isTyping bool) {
	var data ws.TypingData
	if !decodeData(event, &data) {
		return
	}
	if data.UserID == r.userID {
		return
	}
	r.store.SetTyping(data.ChatID, data.UserID, isTyping)
}

// decodeData re-marshals the envelope's loosely typed Data into the expected
// payload struct.
func decodeData(event *ws.Event, out interface{}) bool {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		log.Printf("Router decodeData Error: %v", err)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Printf("Router decodeData Error: %s payload: %v", event.Type, err)
		return false
	}
	return true
}

func (r *Router) send(eventType string, data interface{}, chatID string) {
	event := ws.Event{
		Type:      eventType,
		Data:      data,
		ChatID:    chatID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("Router send Error: %s: %v", eventType, err)
	}
}

// Join announces the user to the server and subscribes the user room.
func (r *Router) Join() {
	r.send(ws.EventJoin, ws.HeartbeatData{UserID: r.userID}, "")
}

// JoinChat subscribes a chat room and remembers it for reconnects.
func (r *Router) JoinChat(chatID string) {
	r.mu.Lock()
	r.joinedChats[chatID] = true
	r.mu.Unlock()
	r.send(ws.EventJoinGroup, ws.JoinGroupData{ChatID: chatID, UserID: r.userID}, chatID)
}

// LeaveChat unsubscribes a chat room.
func (r *Router) LeaveChat(chatID string) {
	r.mu.Lock()
	delete(r.joinedChats, chatID)
	r.mu.Unlock()
	r.send(ws.EventLeaveGroup, ws.JoinGroupData{ChatID: chatID, UserID: r.userID}, chatID)
}

// Heartbeat keeps the server-side presence entry alive.
func (r *Router) Heartbeat() {
	r.send(ws.EventHeartbeat, ws.HeartbeatData{UserID: r.userID}, "")
}

// Typing reports keyboard activity in a chat and arms the idle timer that
// sends stopTyping once the user pauses. Repeated calls re-arm the timer.
func (r *Router) Typing(chatID string) {
	r.send(ws.EventTyping, ws.TypingData{ChatID: chatID, UserID: r.userID}, chatID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.typingTimer[chatID]; ok {
		timer.Reset(typingIdle)
		return
	}
	r.typingTimer[chatID] = time.AfterFunc(typingIdle, func() {
		r.mu.Lock()
		delete(r.typingTimer, chatID)
		r.mu.Unlock()
		r.send(ws.EventStopTyping, ws.TypingData{ChatID: chatID, UserID: r.userID}, chatID)
	})
}

// StopTyping sends an explicit stop, e.g. when the draft is sent or cleared.
func (r *Router) StopTyping(chatID string) {
	r.mu.Lock()
	if timer, ok := r.typingTimer[chatID]; ok {
		timer.Stop()
		delete(r.typingTimer, chatID)
	}
	r.mu.Unlock()
	r.send(ws.EventStopTyping, ws.TypingData{ChatID: chatID, UserID: r.userID}, chatID)
}

// OnReconnect re-establishes server-side state a fresh socket does not have:
// the user room, every previously joined chat room, and a heartbeat so the
// presence entry re-announces. No backfill request is made; missed messages
// are recovered through the REST catch-up path.
func (r *Router) OnReconnect(conn Conn) {
	r.mu.Lock()
	r.conn = conn
	chatIDs := make([]string, 0, len(r.joinedChats))
	for chatID := range r.joinedChats {
		chatIDs = append(chatIDs, chatID)
	}
	r.mu.Unlock()

	r.Join()
	for _, chatID := range chatIDs {
		r.send(ws.EventJoinGroup, ws.JoinGroupData{ChatID: chatID, UserID: r.userID}, chatID)
	}
	r.Heartbeat()
}
