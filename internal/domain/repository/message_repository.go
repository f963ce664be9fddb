package repository

import (
	"context"
	"time"

	"parley/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, chatID, messageID string) (*entity.Message, error)

	// FindByID locates a message by id alone, for the message-scoped REST
	// operations that do not carry a chat id.
	FindByID(ctx context.Context, messageID string) (*entity.Message, error)

	Update(ctx context.Context, message *entity.Message) error

	// ListByChat returns one page ordered descending by createdAt plus the
	// total message count for the chat.
	ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error)

	// ListNewer returns messages with createdAt strictly after the watermark,
	// ascending, capped at limit.
	ListNewer(ctx context.Context, chatID string, after time.Time, limit int) ([]*entity.Message, error)

	// ListContext returns a contiguous ascending window of up to limit
	// messages centered on the target message.
	ListContext(ctx context.Context, messageID string, limit int) ([]*entity.Message, error)

	// Search filters message content by substring and optionally by calendar
	// day, paginated like ListByChat.
	Search(ctx context.Context, chatID, query string, date *time.Time, limit, offset int) ([]*entity.Message, int64, error)

	// ListUnseenByUser returns every message in the chat whose seen set does
	// not contain userID, excluding the user's own messages.
	ListUnseenByUser(ctx context.Context, chatID, userID string) ([]*entity.Message, error)
}
