package websocket

import (
	"parley/internal/domain/entity"
)

// Client -> server event types.
const (
	EventJoin       = "join"
	EventJoinGroup  = "joinGroup"
	EventLeaveGroup = "leaveGroup"
	EventHeartbeat  = "heartbeat"
	EventTyping     = "typing"
	EventStopTyping = "stopTyping"
)

// Server -> client event types.
const (
	EventNewMessage      = "new_message"
	EventEditMessage     = "edit_message"
	EventDeleteMessage   = "delete_message"
	EventMessageReaction = "message_reaction"
	EventUnreadUpdate    = "unread_update"
	EventMessagesSeen    = "messages_seen"
	EventOnlineUsers     = "online_users"
	EventPresenceUpdate  = "presence_update"
	EventError           = "error"
)

// Event is the wire envelope shared by both directions.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	ChatID    string      `json:"chat_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type JoinGroupData struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

type HeartbeatData struct {
	UserID string `json:"user_id"`
}

type TypingData struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
}

type NewMessageData struct {
	Message *entity.Message `json:"message"`
	Sender  *entity.User    `json:"sender,omitempty"`
}

type UnreadUpdateData struct {
	ChatID string `json:"chat_id"`
	Count  int64  `json:"count"`
}

type MessagesSeenData struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

type PresenceUpdateData struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // "online" or "offline"
}
