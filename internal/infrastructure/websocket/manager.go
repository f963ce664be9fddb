package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Manager owns every active connection plus the room registry: one private
// room per user and one room per chat. It is the single shared mutable
// structure on the broadcast path; rooms change only through the verified
// join/leave handlers.
//
// Channel ownership: a client's Send channel is closed only while holding the
// write lock, and every send happens under the read lock, so a send can never
// race a close.
type Manager struct {
	clients    map[string]*Client
	chatRooms  map[string]map[string]bool
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		chatRooms:  make(map[string]map[string]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's main loop in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				if displaced, ok := m.clients[client.UserID]; ok && displaced != client {
					// A reconnect replaces the previous connection; closing
					// its channel lets the old WritePump exit instead of
					// blocking on the orphaned channel forever.
					close(displaced.Send)
				}
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				log.Printf("Client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				if current, ok := m.clients[client.UserID]; ok && current == client {
					delete(m.clients, client.UserID)
					for _, room := range m.chatRooms {
						delete(room, client.UserID)
					}
					close(client.Send)
				}
				m.mutex.Unlock()
				log.Printf("Client unregistered: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// JoinChatRoom admits a user into a chat room. Authorization happens in the
// event handler before this is called.
func (m *Manager) JoinChatRoom(chatID, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, ok := m.chatRooms[chatID]
	if !ok {
		room = make(map[string]bool)
		m.chatRooms[chatID] = room
	}
	room[userID] = true
}

func (m *Manager) LeaveChatRoom(chatID, userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, ok := m.chatRooms[chatID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(m.chatRooms, chatID)
		}
	}
}

// SendToUser delivers a payload to a user's private room. Fire-and-forget: a
// client that cannot keep up is dropped rather than blocking the caller. The
// send stays under the read lock so it cannot race a concurrent close.
func (m *Manager) SendToUser(userID string, payload []byte) {
	full := false

	m.mutex.RLock()
	if client, ok := m.clients[userID]; ok {
		select {
		case client.Send <- payload:
		default:
			full = true
		}
	}
	m.mutex.RUnlock()

	if full {
		log.Printf("Client %s send buffer full, dropping connection", userID)
		m.RemoveClient(userID)
	}
}

// BroadcastToChatRoom fans a payload out to every user in the chat room,
// skipping excludeUserID when non-empty.
func (m *Manager) BroadcastToChatRoom(chatID string, payload []byte, excludeUserID string) {
	m.mutex.RLock()
	room := m.chatRooms[chatID]
	members := make([]string, 0, len(room))
	for userID := range room {
		if userID != excludeUserID {
			members = append(members, userID)
		}
	}
	m.mutex.RUnlock()

	for _, userID := range members {
		m.SendToUser(userID, payload)
	}
}

// BroadcastToAll sends a payload to every connected client.
func (m *Manager) BroadcastToAll(payload []byte) {
	m.mutex.RLock()
	userIDs := make([]string, 0, len(m.clients))
	for userID := range m.clients {
		userIDs = append(userIDs, userID)
	}
	m.mutex.RUnlock()

	for _, userID := range userIDs {
		m.SendToUser(userID, payload)
	}
}

func (m *Manager) RemoveClient(userID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if client, ok := m.clients[userID]; ok {
		delete(m.clients, userID)
		for _, room := range m.chatRooms {
			delete(room, userID)
		}
		close(client.Send)
	}
}

// Emit marshals an event envelope and sends it to a user room.
func (m *Manager) Emit(userID string, eventType string, data interface{}) {
	payload, err := marshalEvent(eventType, data)
	if err != nil {
		log.Printf("Failed to marshal %s event for user %s: %v", eventType, userID, err)
		return
	}
	m.SendToUser(userID, payload)
}

// EmitToChatRoom marshals an event envelope and fans it out to a chat room.
func (m *Manager) EmitToChatRoom(chatID string, eventType string, data interface{}, excludeUserID string) {
	payload, err := marshalEvent(eventType, data)
	if err != nil {
		log.Printf("Failed to marshal %s event for chat %s: %v", eventType, chatID, err)
		return
	}
	m.BroadcastToChatRoom(chatID, payload, excludeUserID)
}

// EmitToAll marshals an event envelope and sends it to every client.
func (m *Manager) EmitToAll(eventType string, data interface{}) {
	payload, err := marshalEvent(eventType, data)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", eventType, err)
		return
	}
	m.BroadcastToAll(payload)
}

func marshalEvent(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
