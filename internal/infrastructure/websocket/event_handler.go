package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// MembershipResolver authorizes chat room joins against current chat
// membership. Joins are re-verified here, not only at message-send time, so a
// client removed from a chat cannot keep listening on its room.
type MembershipResolver interface {
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
}

// PresenceTracker is the ephemeral heartbeat registry consumed by the socket
// layer.
type PresenceTracker interface {
	Heartbeat(userID string)
	OnlineUsers() []string
}

// EventHandler routes client -> server socket events.
type EventHandler struct {
	manager    *Manager
	membership MembershipResolver
	presence   PresenceTracker
}

func NewEventHandler(manager *Manager, membership MembershipResolver, presence PresenceTracker) *EventHandler {
	return &EventHandler{
		manager:    manager,
		membership: membership,
		presence:   presence,
	}
}

func (h *EventHandler) HandleClientEvent(client *Client, payload []byte) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("WebSocket: malformed event from client %s: %v", client.UserID, err)
		h.sendError(client, "Invalid event format")
		return
	}

	switch event.Type {
	case EventJoin:
		h.handleJoin(client)

	case EventJoinGroup:
		h.handleJoinGroup(client, event)

	case EventLeaveGroup:
		h.handleLeaveGroup(client, event)

	case EventHeartbeat:
		h.presence.Heartbeat(client.UserID)

	case EventTyping:
		h.relayTyping(client, event, EventTyping)

	case EventStopTyping:
		h.relayTyping(client, event, EventStopTyping)

	default:
		log.Printf("WebSocket: unknown event type %q from client %s", event.Type, client.UserID)
		h.sendError(client, "Unknown event type")
	}
}

// handleJoin announces presence and replies with a snapshot of who is online.
// The private user room itself is established at registration time.
func (h *EventHandler) handleJoin(client *Client) {
	h.presence.Heartbeat(client.UserID)
	h.manager.Emit(client.UserID, EventOnlineUsers, h.presence.OnlineUsers())
}

func (h *EventHandler) handleJoinGroup(client *Client, event Event) {
	chatID := h.chatID(event)
	if chatID == "" {
		h.sendError(client, "Missing chat_id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	member, err := h.membership.IsMember(ctx, chatID, client.UserID)
	if err != nil {
		log.Printf("WebSocket: membership check failed for user %s chat %s: %v", client.UserID, chatID, err)
		h.sendError(client, "Failed to verify chat membership")
		return
	}
	if !member {
		// Silent refusal: no room state changes for non-members.
		log.Printf("WebSocket: refused join of user %s to chat %s", client.UserID, chatID)
		h.sendError(client, "Not a member of this chat")
		return
	}

	h.manager.JoinChatRoom(chatID, client.UserID)
	log.Printf("WebSocket: user %s joined chat room %s", client.UserID, chatID)
}

func (h *EventHandler) handleLeaveGroup(client *Client, event Event) {
	chatID := h.chatID(event)
	if chatID == "" {
		h.sendError(client, "Missing chat_id")
		return
	}

	h.manager.LeaveChatRoom(chatID, client.UserID)
	log.Printf("WebSocket: user %s left chat room %s", client.UserID, chatID)
}

// relayTyping forwards typing state to the chat room without storing
// anything; the client enforces its own inactivity timeout.
func (h *EventHandler) relayTyping(client *Client, event Event, eventType string) {
	chatID := h.chatID(event)
	if chatID == "" {
		return
	}

	h.manager.EmitToChatRoom(chatID, eventType, TypingData{
		ChatID: chatID,
		UserID: client.UserID,
	}, client.UserID)
}

// chatID extracts the chat id from the envelope, accepting either the
// top-level field or a data object carrying chat_id.
func (h *EventHandler) chatID(event Event) string {
	if event.ChatID != "" {
		return event.ChatID
	}
	if data, ok := event.Data.(map[string]interface{}); ok {
		if id, ok := data["chat_id"].(string); ok {
			return id
		}
	}
	return ""
}

func (h *EventHandler) sendError(client *Client, message string) {
	h.manager.Emit(client.UserID, EventError, map[string]string{
		"error": message,
	})
}
