package entity

import "time"

// DeletedContent replaces the body of a soft-deleted message.
const DeletedContent = "This message was deleted"

// ReplySnapshot is an immutable copy of the quoted message captured at send
// time. It is not a live reference: later edits or deletion of the original
// never change it.
type ReplySnapshot struct {
	MessageID  string `json:"message_id" firestore:"messageId"`
	SenderID   string `json:"sender_id" firestore:"senderId"`
	SenderName string `json:"sender_name" firestore:"senderName"`
	Content    string `json:"content" firestore:"content"`
}

// Reaction is one (emoji, user) pair. A user may hold several distinct emoji
// on the same message; the pair itself is unique.
type Reaction struct {
	Emoji  string `json:"emoji" firestore:"emoji"`
	UserID string `json:"user_id" firestore:"userId"`
}

type Message struct {
	ID          string         `json:"id" firestore:"id"`
	ChatID      string         `json:"chat_id" firestore:"chatId"`
	SenderID    string         `json:"sender_id" firestore:"senderId"`
	Content     string         `json:"content" firestore:"content"`
	Edited      bool           `json:"edited" firestore:"edited"`
	Deleted     bool           `json:"deleted" firestore:"deleted"`
	ReplyTo     *ReplySnapshot `json:"reply_to,omitempty" firestore:"replyTo,omitempty"`
	Reactions   []Reaction     `json:"reactions" firestore:"reactions"`
	DeliveredTo []string       `json:"delivered_to" firestore:"deliveredTo"`
	SeenBy      []string       `json:"seen_by" firestore:"seenBy"`
	CreatedAt   time.Time      `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time      `json:"updated_at" firestore:"updatedAt"`
}

// HasReaction reports whether the (emoji, user) pair is present.
func (m *Message) HasReaction(emoji, userID string) bool {
	for _, r := range m.Reactions {
		if r.Emoji == emoji && r.UserID == userID {
			return true
		}
	}
	return false
}

// SeenByUser reports whether userID is in the seen set.
func (m *Message) SeenByUser(userID string) bool {
	for _, id := range m.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

// DeliveredToUser reports whether userID is in the delivered set.
func (m *Message) DeliveredToUser(userID string) bool {
	for _, id := range m.DeliveredTo {
		if id == userID {
			return true
		}
	}
	return false
}
