package repository

import (
	"context"

	"parley/internal/domain/entity"
)

// ChatRepository is consumed as a membership-authorization source. Chat
// creation and membership administration belong to an external collaborator;
// Create exists for that collaborator and for test seeding.
type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	Update(ctx context.Context, chat *entity.Chat) error
	ListByUserID(ctx context.Context, userID string) ([]*entity.Chat, error)
}
