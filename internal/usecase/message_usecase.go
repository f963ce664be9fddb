package usecase

import (
	"context"
	"log"
	"math"
	"time"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	ws "parley/internal/infrastructure/websocket"
	"parley/pkg/errors"
)

// MessageUseCase is the message synchronization engine: the durable REST
// write path plus the fire-and-forget broadcast side effects. The REST write
// is authoritative; broadcast failures are never retried.
type MessageUseCase struct {
	messageRepo repository.MessageRepository
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	unreadRepo  repository.UnreadRepository
	wsManager   *ws.Manager
}

func NewMessageUseCase(
	messageRepo repository.MessageRepository,
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	unreadRepo repository.UnreadRepository,
	wsManager *ws.Manager,
) *MessageUseCase {
	return &MessageUseCase{
		messageRepo: messageRepo,
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		unreadRepo:  unreadRepo,
		wsManager:   wsManager,
	}
}

type SendMessageInput struct {
	ChatID  string
	Content string
	ReplyTo string
}

type SendMessageResult struct {
	Message      *entity.Message  `json:"message"`
	ChatMembers  []string         `json:"chat_members"`
	UnreadDeltas map[string]int64 `json:"unread_deltas"`
}

type MessagePage struct {
	Messages    []*entity.Message `json:"messages"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	HasMore     bool              `json:"hasMore"`
}

func (uc *MessageUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*SendMessageResult, error) {
	if input.ChatID == "" {
		return nil, errors.Validation("chat_id is required", nil)
	}
	if input.Content == "" {
		return nil, errors.Validation("content is required", nil)
	}

	chat, err := uc.chatRepo.GetByID(ctx, input.ChatID)
	if err != nil {
		log.Printf("SendMessage Error: Chat %s not found: %v", input.ChatID, err)
		return nil, err
	}
	if !chat.HasMember(senderID) {
		log.Printf("SendMessage Error: User %s is not a member of chat %s", senderID, input.ChatID)
		return nil, errors.Forbidden("User is not a member of this chat", nil)
	}

	var replyTo *entity.ReplySnapshot
	if input.ReplyTo != "" {
		replyTo, err = uc.snapshotReply(ctx, input.ChatID, input.ReplyTo)
		if err != nil {
			return nil, err
		}
	}

	message := &entity.Message{
		ChatID:      input.ChatID,
		SenderID:    senderID,
		Content:     input.Content,
		ReplyTo:     replyTo,
		Reactions:   []entity.Reaction{},
		DeliveredTo: []string{},
		SeenBy:      []string{},
		CreatedAt:   time.Now(),
	}

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		log.Printf("SendMessage Error: Failed to create message for chat %s: %v", input.ChatID, err)
		return nil, err
	}

	chat.LastMessageID = message.ID
	chat.LastMessageAt = message.CreatedAt
	if err := uc.chatRepo.Update(ctx, chat); err != nil {
		log.Printf("SendMessage Warning: Failed to update chat %s last message: %v", chat.ID, err)
	}

	recipients := chat.Recipients(senderID)
	unreadDeltas := make(map[string]int64, len(recipients))
	for _, recipientID := range recipients {
		count, err := uc.unreadRepo.Increment(ctx, recipientID, input.ChatID)
		if err != nil {
			log.Printf("SendMessage Warning: Failed to increment unread for user %s chat %s: %v", recipientID, input.ChatID, err)
			continue
		}
		unreadDeltas[recipientID] = count

		uc.wsManager.Emit(recipientID, ws.EventUnreadUpdate, ws.UnreadUpdateData{
			ChatID: input.ChatID,
			Count:  count,
		})
	}

	// Every room member gets the broadcast, the sender included; the sender's
	// client suppresses its own echo.
	uc.wsManager.EmitToChatRoom(input.ChatID, ws.EventNewMessage, ws.NewMessageData{
		Message: message,
		Sender:  uc.senderSummary(ctx, senderID),
	}, "")

	return &SendMessageResult{
		Message:      message,
		ChatMembers:  chat.Members,
		UnreadDeltas: unreadDeltas,
	}, nil
}

func (uc *MessageUseCase) snapshotReply(ctx context.Context, chatID, replyToID string) (*entity.ReplySnapshot, error) {
	original, err := uc.messageRepo.GetByID(ctx, chatID, replyToID)
	if err != nil {
		log.Printf("SendMessage Error: Reply target %s not found in chat %s: %v", replyToID, chatID, err)
		return nil, errors.NotFound("Reply target", err)
	}

	senderName := ""
	if sender, err := uc.userRepo.GetByID(ctx, original.SenderID); err == nil {
		senderName = sender.Username
	}

	return &entity.ReplySnapshot{
		MessageID:  original.ID,
		SenderID:   original.SenderID,
		SenderName: senderName,
		Content:    original.Content,
	}, nil
}

func (uc *MessageUseCase) EditMessage(ctx context.Context, userID, messageID, content string) (*entity.Message, error) {
	if content == "" {
		return nil, errors.Validation("content is required", nil)
	}

	message, err := uc.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID {
		return nil, errors.Forbidden("Only the sender can edit this message", nil)
	}
	if message.Deleted {
		return nil, errors.Conflict("Message has been deleted")
	}

	message.Content = content
	message.Edited = true

	if err := uc.messageRepo.Update(ctx, message); err != nil {
		log.Printf("EditMessage Error: Failed to update message %s: %v", messageID, err)
		return nil, err
	}

	uc.wsManager.EmitToChatRoom(message.ChatID, ws.EventEditMessage, message, "")

	return message, nil
}

func (uc *MessageUseCase) DeleteMessage(ctx context.Context, userID, messageID string) (*entity.Message, error) {
	message, err := uc.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID {
		return nil, errors.Forbidden("Only the sender can delete this message", nil)
	}

	// Idempotent: deleting twice leaves the same sentinel state.
	message.Content = entity.DeletedContent
	message.Deleted = true

	if err := uc.messageRepo.Update(ctx, message); err != nil {
		log.Printf("DeleteMessage Error: Failed to update message %s: %v", messageID, err)
		return nil, err
	}

	uc.wsManager.EmitToChatRoom(message.ChatID, ws.EventDeleteMessage, message, "")

	return message, nil
}

func (uc *MessageUseCase) ToggleReaction(ctx context.Context, userID, messageID, emoji string) (*entity.Message, error) {
	if emoji == "" {
		return nil, errors.Validation("emoji is required", nil)
	}

	message, err := uc.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	chat, err := uc.chatRepo.GetByID(ctx, message.ChatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, errors.Forbidden("User is not a member of this chat", nil)
	}

	if message.HasReaction(emoji, userID) {
		reactions := message.Reactions[:0]
		for _, r := range message.Reactions {
			if r.Emoji != emoji || r.UserID != userID {
				reactions = append(reactions, r)
			}
		}
		message.Reactions = reactions
	} else {
		message.Reactions = append(message.Reactions, entity.Reaction{Emoji: emoji, UserID: userID})
	}

	if err := uc.messageRepo.Update(ctx, message); err != nil {
		log.Printf("ToggleReaction Error: Failed to update message %s: %v", messageID, err)
		return nil, err
	}

	uc.wsManager.EmitToChatRoom(message.ChatID, ws.EventMessageReaction, message, "")

	return message, nil
}

// MarkDelivered appends userID to the delivered set unless the user has
// already seen the message.
func (uc *MessageUseCase) MarkDelivered(ctx context.Context, userID, messageID string) error {
	message, err := uc.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := uc.authorizeMember(ctx, message.ChatID, userID); err != nil {
		return err
	}

	if message.SeenByUser(userID) || message.DeliveredToUser(userID) {
		return nil
	}

	message.DeliveredTo = append(message.DeliveredTo, userID)
	return uc.messageRepo.Update(ctx, message)
}

// MarkChatSeen walks every message the caller has not seen, applies the
// monotonic lattice (delivered entries are promoted and removed) and emits a
// single messages_seen to the room.
func (uc *MessageUseCase) MarkChatSeen(ctx context.Context, userID, chatID string) (int, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("MarkChatSeen Error: Chat %s not found: %v", chatID, err)
		return 0, err
	}
	if !chat.HasMember(userID) {
		return 0, errors.Forbidden("User is not a member of this chat", nil)
	}

	unseen, err := uc.messageRepo.ListUnseenByUser(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}

	for _, message := range unseen {
		message.SeenBy = append(message.SeenBy, userID)

		delivered := message.DeliveredTo[:0]
		for _, id := range message.DeliveredTo {
			if id != userID {
				delivered = append(delivered, id)
			}
		}
		message.DeliveredTo = delivered

		if err := uc.messageRepo.Update(ctx, message); err != nil {
			log.Printf("MarkChatSeen Error: Failed to update message %s: %v", message.ID, err)
			return 0, err
		}
	}

	if len(unseen) > 0 {
		uc.wsManager.EmitToChatRoom(chatID, ws.EventMessagesSeen, ws.MessagesSeenData{
			ChatID: chatID,
			UserID: userID,
			Count:  len(unseen),
		}, userID)
	}

	return len(unseen), nil
}

// MarkChatRead zeroes the caller's unread counter and advances the lastReadAt
// watermark. The server echo lets the client reconcile its optimistic reset.
func (uc *MessageUseCase) MarkChatRead(ctx context.Context, userID, chatID string) error {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("MarkChatRead Error: Chat %s not found: %v", chatID, err)
		return err
	}
	if !chat.HasMember(userID) {
		return errors.Forbidden("User is not a member of this chat", nil)
	}

	if err := uc.unreadRepo.Reset(ctx, userID, chatID, time.Now()); err != nil {
		log.Printf("MarkChatRead Error: Failed to reset unread for user %s chat %s: %v", userID, chatID, err)
		return err
	}

	uc.wsManager.Emit(userID, ws.EventUnreadUpdate, ws.UnreadUpdateData{
		ChatID: chatID,
		Count:  0,
	})

	return nil
}

func (uc *MessageUseCase) GetUnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	return uc.unreadRepo.Counts(ctx, userID)
}

// CountUnread recomputes unread(userID, chatID) from first principles: the
// number of messages with createdAt past the lastReadAt watermark whose
// sender is someone else. This is the definition the incremental counter
// mirrors, so it doubles as a drift check.
func (uc *MessageUseCase) CountUnread(ctx context.Context, userID, chatID string) (int64, error) {
	if err := uc.authorizeMember(ctx, chatID, userID); err != nil {
		return 0, err
	}

	watermark, err := uc.unreadRepo.LastReadAt(ctx, userID, chatID)
	if err != nil {
		return 0, err
	}

	messages, err := uc.messageRepo.ListNewer(ctx, chatID, watermark, 0)
	if err != nil {
		log.Printf("CountUnread Error: Failed to list messages for chat %s: %v", chatID, err)
		return 0, err
	}

	var count int64
	for _, message := range messages {
		if message.SenderID != userID {
			count++
		}
	}
	return count, nil
}

// GetMessages returns one page ascending by createdAt for display, computed
// from the repository's descending query.
func (uc *MessageUseCase) GetMessages(ctx context.Context, userID, chatID string, page, limit int) (*MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	if err := uc.authorizeMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	messages, total, err := uc.messageRepo.ListByChat(ctx, chatID, limit, (page-1)*limit)
	if err != nil {
		log.Printf("GetMessages Error: Failed to list messages for chat %s: %v", chatID, err)
		return nil, err
	}

	reverse(messages)

	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	return &MessagePage{
		Messages:    messages,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasMore:     page < totalPages,
	}, nil
}

// GetNewerMessages closes gaps missed while scroll-triggered pagination was
// locked: everything strictly after the watermark, ascending.
func (uc *MessageUseCase) GetNewerMessages(ctx context.Context, userID, chatID string, after time.Time, limit int) ([]*entity.Message, error) {
	if limit < 1 {
		limit = 20
	}

	if err := uc.authorizeMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	return uc.messageRepo.ListNewer(ctx, chatID, after, limit)
}

func (uc *MessageUseCase) GetMessageContext(ctx context.Context, userID, messageID string, limit int) ([]*entity.Message, error) {
	if limit < 1 {
		limit = 20
	}

	target, err := uc.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := uc.authorizeMember(ctx, target.ChatID, userID); err != nil {
		return nil, err
	}

	return uc.messageRepo.ListContext(ctx, messageID, limit)
}

func (uc *MessageUseCase) SearchMessages(ctx context.Context, userID, chatID, query string, date *time.Time, page, limit int) (*MessagePage, error) {
	if chatID == "" {
		return nil, errors.Validation("chat_id is required", nil)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	if err := uc.authorizeMember(ctx, chatID, userID); err != nil {
		return nil, err
	}

	messages, total, err := uc.messageRepo.Search(ctx, chatID, query, date, limit, (page-1)*limit)
	if err != nil {
		log.Printf("SearchMessages Error: Failed to search chat %s: %v", chatID, err)
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	return &MessagePage{
		Messages:    messages,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasMore:     page < totalPages,
	}, nil
}

// IsMember implements the socket layer's membership resolver so room joins
// are re-verified against current chat membership.
func (uc *MessageUseCase) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return false, nil
		}
		return false, err
	}
	return chat.HasMember(userID), nil
}

func (uc *MessageUseCase) authorizeMember(ctx context.Context, chatID, userID string) error {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(userID) {
		return errors.Forbidden("User is not a member of this chat", nil)
	}
	return nil
}

func (uc *MessageUseCase) senderSummary(ctx context.Context, userID string) *entity.User {
	sender, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("senderSummary Warning: User %s not found: %v", userID, err)
		return nil
	}
	return sender
}

func reverse(messages []*entity.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
