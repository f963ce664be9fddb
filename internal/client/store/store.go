package store

import (
	"sort"
	"sync"
	"time"

	"parley/internal/domain/entity"
)

// Store is the client's normalized mirror of server state: one gap-free,
// ascending-by-createdAt message window per chat, plus server-declared unread
// counters and the presence/typing mirror. REST pages and socket pushes merge
// through the same insertion rules, so arrival order never matters.
type Store struct {
	mu       sync.Mutex
	messages map[string]*entity.Message
	order    map[string][]string
	unread   map[string]int64
	online   map[string]bool
	typing   map[string]map[string]bool
}

func New() *Store {
	return &Store{
		messages: make(map[string]*entity.Message),
		order:    make(map[string][]string),
		unread:   make(map[string]int64),
		online:   make(map[string]bool),
		typing:   make(map[string]map[string]bool),
	}
}

// Upsert inserts a message into its chat's ordered window. Insertion position
// is the first entry with a greater createdAt; duplicate ids are no-ops, so
// a REST fetch followed by the socket echo of the same message stores exactly
// one entry.
func (s *Store) Upsert(message *entity.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[message.ID]; exists {
		return false
	}

	s.messages[message.ID] = message

	ids := s.order[message.ChatID]
	idx := sort.Search(len(ids), func(i int) bool {
		return s.messages[ids[i]].CreatedAt.After(message.CreatedAt)
	})

	ids = append(ids, "")
	copy(ids[idx+1:], ids[idx:])
	ids[idx] = message.ID
	s.order[message.ChatID] = ids

	return true
}

// Apply replaces an already-stored message in place, for edit, delete,
// reaction and seen-state updates. Unknown ids are ignored: a mutation event
// for a message outside the loaded window has nothing to patch.
func (s *Store) Apply(message *entity.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[message.ID]; !exists {
		return false
	}
	s.messages[message.ID] = message
	return true
}

// Get returns the stored message for id, or nil.
func (s *Store) Get(id string) *entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

// Has reports whether id is loaded.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.messages[id]
	return ok
}

// Messages returns the chat's loaded window in ascending createdAt order.
func (s *Store) Messages(chatID string) []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.order[chatID]
	out := make([]*entity.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.messages[id])
	}
	return out
}

// Count returns how many messages are loaded for the chat.
func (s *Store) Count(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order[chatID])
}

// Watermark returns the createdAt of the newest loaded message, the cursor
// for newer-fetches. Zero time when nothing is loaded.
func (s *Store) Watermark(chatID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.order[chatID]
	if len(ids) == 0 {
		return time.Time{}
	}
	return s.messages[ids[len(ids)-1]].CreatedAt
}

// MarkSeen mirrors a messages_seen event: userID is appended to every loaded
// message's seen set and dropped from its delivered set.
func (s *Store) MarkSeen(chatID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order[chatID] {
		message := s.messages[id]
		if message.SenderID == userID || message.SeenByUser(userID) {
			continue
		}
		message.SeenBy = append(message.SeenBy, userID)

		delivered := message.DeliveredTo[:0]
		for _, d := range message.DeliveredTo {
			if d != userID {
				delivered = append(delivered, d)
			}
		}
		message.DeliveredTo = delivered
	}
}

// SetUnread mirrors a server-declared counter; the client never computes
// counts itself.
func (s *Store) SetUnread(chatID string, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[chatID] = count
}

// ResetUnread is the optimistic local reset on chat open, reconciled later by
// the server echo.
func (s *Store) ResetUnread(chatID string) {
	s.SetUnread(chatID, 0)
}

func (s *Store) Unread(chatID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[chatID]
}

// SetOnlineUsers replaces the presence mirror with a server snapshot.
func (s *Store) SetOnlineUsers(userIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		s.online[id] = true
	}
}

func (s *Store) SetPresence(userID string, isOnline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isOnline {
		s.online[userID] = true
	} else {
		delete(s.online, userID)
	}
}

func (s *Store) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

func (s *Store) SetTyping(chatID, userID string, isTyping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.typing[chatID]
	if room == nil {
		room = make(map[string]bool)
		s.typing[chatID] = room
	}
	if isTyping {
		room[userID] = true
	} else {
		delete(room, userID)
	}
}

func (s *Store) TypingUsers(chatID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.typing[chatID]))
	for id := range s.typing[chatID] {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}
