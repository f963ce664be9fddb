package entity

import "time"

type Chat struct {
	ID            string    `json:"id" firestore:"id"`
	ChatName      string    `json:"chat_name,omitempty" firestore:"chatName,omitempty"`
	Members       []string  `json:"members" firestore:"members"`
	IsGroup       bool      `json:"is_group" firestore:"isGroup"`
	Admins        []string  `json:"admins,omitempty" firestore:"admins,omitempty"`
	OwnerID       string    `json:"owner_id,omitempty" firestore:"ownerId,omitempty"`
	LastMessageID string    `json:"last_message_id,omitempty" firestore:"lastMessageId,omitempty"`
	LastMessageAt time.Time `json:"last_message_at" firestore:"lastMessageAt"`
	CreatedAt     time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time `json:"updated_at" firestore:"updatedAt"`
}

// HasMember reports whether userID belongs to the chat. Membership is the
// authorization source for every message operation and room join.
func (c *Chat) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// Recipients returns the member set minus the sender.
func (c *Chat) Recipients(senderID string) []string {
	recipients := make([]string, 0, len(c.Members))
	for _, id := range c.Members {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	return recipients
}
