package repository

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	"parley/pkg/errors"
)

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages(chatID string) *firestore.CollectionRef {
	return r.client.Collection("chats").Doc(chatID).Collection("messages")
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	message.UpdatedAt = message.CreatedAt

	_, err := r.messages(message.ChatID).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, chatID, messageID string) (*entity.Message, error) {
	doc, err := r.messages(chatID).Doc(messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

// FindByID resolves a message without knowing its chat, via a collection
// group query on the stored id field.
func (r *firestoreMessageRepository) FindByID(ctx context.Context, messageID string) (*entity.Message, error) {
	iter := r.client.CollectionGroup("messages").
		Where("id", "==", messageID).
		Limit(1).
		Documents(ctx)

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, errors.NotFound("Message", nil)
	}
	if err != nil {
		return nil, errors.Internal("Failed to find message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) Update(ctx context.Context, message *entity.Message) error {
	message.UpdatedAt = time.Now()

	_, err := r.messages(message.ChatID).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to update message", err)
	}
	return nil
}

// countByChat uses a server-side aggregation so paging does not stream the
// whole collection just to report the total.
func (r *firestoreMessageRepository) countByChat(ctx context.Context, chatID string) (int64, error) {
	results, err := r.messages(chatID).NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, err
	}

	value, ok := results["total"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count aggregation result %T", results["total"])
	}
	return value.GetIntegerValue(), nil
}

func (r *firestoreMessageRepository) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	total, err := r.countByChat(ctx, chatID)
	if err != nil {
		log.Printf("Firestore error while counting messages for chat %s: %v", chatID, err)
		return nil, 0, errors.Internal("Failed to count messages for chat", err)
	}

	query := r.messages(chatID).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	messages, err := r.collect(ctx, query, chatID)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *firestoreMessageRepository) ListNewer(ctx context.Context, chatID string, after time.Time, limit int) ([]*entity.Message, error) {
	query := r.messages(chatID).
		Where("createdAt", ">", after).
		OrderBy("createdAt", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	return r.collect(ctx, query, chatID)
}

func (r *firestoreMessageRepository) ListContext(ctx context.Context, messageID string, limit int) ([]*entity.Message, error) {
	target, err := r.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	chatID := target.ChatID

	if limit <= 0 {
		limit = 20
	}
	half := limit / 2

	beforeQuery := r.messages(chatID).
		Where("createdAt", "<", target.CreatedAt).
		OrderBy("createdAt", firestore.Desc).
		Limit(half)
	before, err := r.collect(ctx, beforeQuery, chatID)
	if err != nil {
		return nil, err
	}

	afterLimit := limit - len(before) - 1
	if afterLimit < 0 {
		afterLimit = 0
	}
	afterQuery := r.messages(chatID).
		Where("createdAt", ">", target.CreatedAt).
		OrderBy("createdAt", firestore.Asc).
		Limit(afterLimit)
	after, err := r.collect(ctx, afterQuery, chatID)
	if err != nil {
		return nil, err
	}

	// before came back newest-first; reverse into ascending order.
	window := make([]*entity.Message, 0, len(before)+1+len(after))
	for i := len(before) - 1; i >= 0; i-- {
		window = append(window, before[i])
	}
	window = append(window, target)
	window = append(window, after...)

	return window, nil
}

func (r *firestoreMessageRepository) Search(ctx context.Context, chatID, queryText string, date *time.Time, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.messages(chatID).OrderBy("createdAt", firestore.Desc)
	if date != nil {
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		query = r.messages(chatID).
			Where("createdAt", ">=", dayStart).
			Where("createdAt", "<", dayStart.Add(24*time.Hour)).
			OrderBy("createdAt", firestore.Desc)
	}

	all, err := r.collect(ctx, query, chatID)
	if err != nil {
		return nil, 0, err
	}

	// Firestore has no substring queries; filter content in memory.
	var matched []*entity.Message
	needle := strings.ToLower(queryText)
	for _, m := range all {
		if m.Deleted {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(m.Content), needle) {
			matched = append(matched, m)
		}
	}

	total := int64(len(matched))

	start := offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return matched[start:end], total, nil
}

func (r *firestoreMessageRepository) ListUnseenByUser(ctx context.Context, chatID, userID string) ([]*entity.Message, error) {
	all, err := r.collect(ctx, r.messages(chatID).OrderBy("createdAt", firestore.Asc), chatID)
	if err != nil {
		return nil, err
	}

	var unseen []*entity.Message
	for _, m := range all {
		if m.SenderID == userID || m.SeenByUser(userID) {
			continue
		}
		unseen = append(unseen, m)
	}

	return unseen, nil
}

func (r *firestoreMessageRepository) collect(ctx context.Context, query firestore.Query, chatID string) ([]*entity.Message, error) {
	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for chat %s: %v", chatID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for chat %s: %v", chatID, err)
			return nil, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	return messages, nil
}
