package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain/entity"
	ws "parley/internal/infrastructure/websocket"
	"parley/pkg/errors"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*entity.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[string]*entity.Message{}}
}

func copyMessage(m *entity.Message) *entity.Message {
	clone := *m
	clone.Reactions = append([]entity.Reaction(nil), m.Reactions...)
	clone.DeliveredTo = append([]string(nil), m.DeliveredTo...)
	clone.SeenBy = append([]string(nil), m.SeenBy...)
	if m.ReplyTo != nil {
		snapshot := *m.ReplyTo
		clone.ReplyTo = &snapshot
	}
	return &clone
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	r.messages[message.ID] = copyMessage(message)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, chatID, messageID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[messageID]
	if !ok || message.ChatID != chatID {
		return nil, errors.NotFound("Message", nil)
	}
	return copyMessage(message), nil
}

func (r *fakeMessageRepo) FindByID(ctx context.Context, messageID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[messageID]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return copyMessage(message), nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[message.ID]; !ok {
		return errors.NotFound("Message", nil)
	}
	r.messages[message.ID] = copyMessage(message)
	return nil
}

func (r *fakeMessageRepo) byChatAsc(chatID string) []*entity.Message {
	var messages []*entity.Message
	for _, message := range r.messages {
		if message.ChatID == chatID {
			messages = append(messages, copyMessage(message))
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages
}

func (r *fakeMessageRepo) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asc := r.byChatAsc(chatID)
	total := int64(len(asc))

	desc := make([]*entity.Message, len(asc))
	for i, message := range asc {
		desc[len(asc)-1-i] = message
	}
	if offset >= len(desc) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(desc) {
		end = len(desc)
	}
	return desc[offset:end], total, nil
}

func (r *fakeMessageRepo) ListNewer(ctx context.Context, chatID string, after time.Time, limit int) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newer []*entity.Message
	for _, message := range r.byChatAsc(chatID) {
		if message.CreatedAt.After(after) {
			newer = append(newer, message)
		}
		if limit > 0 && len(newer) == limit {
			break
		}
	}
	return newer, nil
}

func (r *fakeMessageRepo) ListContext(ctx context.Context, messageID string, limit int) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.messages[messageID]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	asc := r.byChatAsc(target.ChatID)
	idx := 0
	for i, message := range asc {
		if message.ID == messageID {
			idx = i
			break
		}
	}
	half := limit / 2
	start := idx - half
	if start < 0 {
		start = 0
	}
	end := start + limit
	if end > len(asc) {
		end = len(asc)
	}
	return asc[start:end], nil
}

func (r *fakeMessageRepo) Search(ctx context.Context, chatID, query string, date *time.Time, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []*entity.Message
	for _, message := range r.byChatAsc(chatID) {
		if query != "" && !strings.Contains(strings.ToLower(message.Content), strings.ToLower(query)) {
			continue
		}
		if date != nil {
			y, m, d := date.Date()
			my, mm, md := message.CreatedAt.Date()
			if y != my || m != mm || d != md {
				continue
			}
		}
		matches = append(matches, message)
	}
	total := int64(len(matches))
	if offset >= len(matches) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], total, nil
}

func (r *fakeMessageRepo) ListUnseenByUser(ctx context.Context, chatID, userID string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var unseen []*entity.Message
	for _, message := range r.byChatAsc(chatID) {
		if message.SenderID == userID || message.SeenByUser(userID) {
			continue
		}
		unseen = append(unseen, message)
	}
	return unseen, nil
}

type fakeChatRepo struct {
	mu    sync.Mutex
	chats map[string]*entity.Chat
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: map[string]*entity.Chat{}}
}

func (r *fakeChatRepo) Create(ctx context.Context, chat *entity.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepo) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return chat, nil
}

func (r *fakeChatRepo) Update(ctx context.Context, chat *entity.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepo) ListByUserID(ctx context.Context, userID string) ([]*entity.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var chats []*entity.Chat
	for _, chat := range r.chats {
		if chat.HasMember(userID) {
			chats = append(chats, chat)
		}
	}
	return chats, nil
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

type fakeUnreadRepo struct {
	mu       sync.Mutex
	counts   map[string]map[string]int64
	lastRead map[string]map[string]time.Time
}

func newFakeUnreadRepo() *fakeUnreadRepo {
	return &fakeUnreadRepo{
		counts:   map[string]map[string]int64{},
		lastRead: map[string]map[string]time.Time{},
	}
}

func (r *fakeUnreadRepo) Increment(ctx context.Context, userID, chatID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[userID] == nil {
		r.counts[userID] = map[string]int64{}
	}
	r.counts[userID][chatID]++
	return r.counts[userID][chatID], nil
}

func (r *fakeUnreadRepo) Reset(ctx context.Context, userID, chatID string, readAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[userID] != nil {
		delete(r.counts[userID], chatID)
	}
	if r.lastRead[userID] == nil {
		r.lastRead[userID] = map[string]time.Time{}
	}
	r.lastRead[userID][chatID] = readAt
	return nil
}

func (r *fakeUnreadRepo) Count(ctx context.Context, userID, chatID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[userID][chatID], nil
}

func (r *fakeUnreadRepo) Counts(ctx context.Context, userID string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	for chatID, count := range r.counts[userID] {
		counts[chatID] = count
	}
	return counts, nil
}

func (r *fakeUnreadRepo) LastReadAt(ctx context.Context, userID, chatID string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRead[userID][chatID], nil
}

type fixture struct {
	uc          *MessageUseCase
	messageRepo *fakeMessageRepo
	chatRepo    *fakeChatRepo
	unreadRepo  *fakeUnreadRepo
}

func newFixture(t *testing.T, members ...string) (*fixture, *entity.Chat) {
	t.Helper()

	messageRepo := newFakeMessageRepo()
	chatRepo := newFakeChatRepo()
	unreadRepo := newFakeUnreadRepo()
	userRepo := &fakeUserRepo{users: map[string]*entity.User{}}
	for _, id := range members {
		userRepo.users[id] = &entity.User{ID: id, Username: "name-" + id}
	}

	chat := &entity.Chat{ID: "chat-1", Members: members, IsGroup: len(members) > 2}
	require.NoError(t, chatRepo.Create(context.Background(), chat))

	uc := NewMessageUseCase(messageRepo, chatRepo, userRepo, unreadRepo, ws.NewManager())
	return &fixture{uc: uc, messageRepo: messageRepo, chatRepo: chatRepo, unreadRepo: unreadRepo}, chat
}

func TestSendMessageValidation(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{Content: "hi"})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))

	_, err = f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1"})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))
}

func TestSendMessageRequiresMembership(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")

	_, err := f.uc.SendMessage(context.Background(), "mallory", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSendMessageIncrementsRecipientsOnly(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	result, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Message.ID)

	assert.Equal(t, map[string]int64{"bob": 1, "carol": 1}, result.UnreadDeltas)

	senderCount, err := f.unreadRepo.Count(ctx, "alice", "chat-1")
	require.NoError(t, err)
	assert.Zero(t, senderCount)
}

func TestUnreadConservation(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	const sent = 5
	for i := 0; i < sent; i++ {
		_, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "m"})
		require.NoError(t, err)
	}

	// Each of the 2 recipients accumulates exactly one unit per send.
	for _, userID := range []string{"bob", "carol"} {
		count, err := f.unreadRepo.Count(ctx, userID, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, int64(sent), count)
	}
}

func TestSendMessageUpdatesChatLastMessage(t *testing.T) {
	f, chat := newFixture(t, "alice", "bob")

	result, err := f.uc.SendMessage(context.Background(), "alice", SendMessageInput{ChatID: chat.ID, Content: "hi"})
	require.NoError(t, err)

	stored, err := f.chatRepo.GetByID(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Message.ID, stored.LastMessageID)
	assert.Equal(t, result.Message.CreatedAt, stored.LastMessageAt)
}

func TestReplySnapshotIsImmutable(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	original, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "original text"})
	require.NoError(t, err)

	reply, err := f.uc.SendMessage(ctx, "bob", SendMessageInput{
		ChatID:  "chat-1",
		Content: "replying",
		ReplyTo: original.Message.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.Message.ReplyTo)
	assert.Equal(t, "original text", reply.Message.ReplyTo.Content)
	assert.Equal(t, "name-alice", reply.Message.ReplyTo.SenderName)

	// Editing the original leaves the snapshot frozen.
	_, err = f.uc.EditMessage(ctx, "alice", original.Message.ID, "edited text")
	require.NoError(t, err)

	stored, err := f.messageRepo.FindByID(ctx, reply.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, "original text", stored.ReplyTo.Content)
}

func TestEditMessageAuthorization(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	sent, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	require.NoError(t, err)

	_, err = f.uc.EditMessage(ctx, "bob", sent.Message.ID, "hijacked")
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	edited, err := f.uc.EditMessage(ctx, "alice", sent.Message.ID, "hi there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", edited.Content)
	assert.True(t, edited.Edited)
}

func TestEditDeletedMessageConflicts(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	sent, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	require.NoError(t, err)

	_, err = f.uc.DeleteMessage(ctx, "alice", sent.Message.ID)
	require.NoError(t, err)

	_, err = f.uc.EditMessage(ctx, "alice", sent.Message.ID, "resurrect")
	assert.True(t, errors.Is(err, "CONFLICT"))
}

func TestDeleteMessageIsIdempotent(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	sent, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	require.NoError(t, err)

	first, err := f.uc.DeleteMessage(ctx, "alice", sent.Message.ID)
	require.NoError(t, err)
	assert.True(t, first.Deleted)
	assert.Equal(t, entity.DeletedContent, first.Content)

	second, err := f.uc.DeleteMessage(ctx, "alice", sent.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
	assert.True(t, second.Deleted)
}

func TestDeleteMessageRequiresSender(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	sent, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	require.NoError(t, err)

	_, err = f.uc.DeleteMessage(ctx, "bob", sent.Message.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestToggleReaction(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	sent, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	require.NoError(t, err)

	withReaction, err := f.uc.ToggleReaction(ctx, "bob", sent.Message.ID, "👍")
	require.NoError(t, err)
	assert.True(t, withReaction.HasReaction("👍", "bob"))

	// A second distinct emoji from the same user coexists with the first.
	twoEmoji, err := f.uc.ToggleReaction(ctx, "bob", sent.Message.ID, "🔥")
	require.NoError(t, err)
	assert.True(t, twoEmoji.HasReaction("👍", "bob"))
	assert.True(t, twoEmoji.HasReaction("🔥", "bob"))

	// Toggling the same pair again removes only that pair.
	removed, err := f.uc.ToggleReaction(ctx, "bob", sent.Message.ID, "👍")
	require.NoError(t, err)
	assert.False(t, removed.HasReaction("👍", "bob"))
	assert.True(t, removed.HasReaction("🔥", "bob"))
}

func TestToggleReactionRequiresMembership(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	sent, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	require.NoError(t, err)

	_, err = f.uc.ToggleReaction(ctx, "mallory", sent.Message.ID, "👍")
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestMarkDeliveredSkipsSeen(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	sent, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, f.uc.MarkDelivered(ctx, "bob", sent.Message.ID))
	stored, err := f.messageRepo.FindByID(ctx, sent.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, stored.DeliveredTo)

	// Delivered twice stays a single entry.
	require.NoError(t, f.uc.MarkDelivered(ctx, "bob", sent.Message.ID))
	stored, err = f.messageRepo.FindByID(ctx, sent.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, stored.DeliveredTo)

	count, err := f.uc.MarkChatSeen(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Once seen, a late delivered receipt must not regress the state.
	require.NoError(t, f.uc.MarkDelivered(ctx, "bob", sent.Message.ID))
	stored, err = f.messageRepo.FindByID(ctx, sent.Message.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.DeliveredTo)
	assert.Equal(t, []string{"bob"}, stored.SeenBy)
}

func TestMarkChatSeenPromotesLattice(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "m"})
		require.NoError(t, err)
	}

	count, err := f.uc.MarkChatSeen(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Second pass finds nothing unseen.
	count, err = f.uc.MarkChatSeen(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkChatReadResetsCounter(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "hi"})
	require.NoError(t, err)

	count, err := f.unreadRepo.Count(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, f.uc.MarkChatRead(ctx, "bob", "chat-1"))

	count, err = f.unreadRepo.Count(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	lastRead, err := f.unreadRepo.LastReadAt(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.False(t, lastRead.IsZero())
}

func TestCountUnreadRecomputesFromWatermark(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "before"})
		require.NoError(t, err)
	}

	time.Sleep(time.Millisecond)
	require.NoError(t, f.uc.MarkChatRead(ctx, "bob", "chat-1"))
	time.Sleep(time.Millisecond)

	// After the watermark: one from alice, one of bob's own.
	_, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "after"})
	require.NoError(t, err)
	_, err = f.uc.SendMessage(ctx, "bob", SendMessageInput{ChatID: "chat-1", Content: "mine"})
	require.NoError(t, err)

	// Only alice's post-watermark message counts toward bob's unread.
	count, err := f.uc.CountUnread(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The recount agrees with the incremental counter.
	incremental, err := f.unreadRepo.Count(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, incremental, count)
}

func TestCountUnreadWithoutWatermarkCountsEverything(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "m"})
		require.NoError(t, err)
	}

	count, err := f.uc.CountUnread(ctx, "bob", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestCountUnreadRequiresMembership(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")

	_, err := f.uc.CountUnread(context.Background(), "mallory", "chat-1")
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func seedMessages(t *testing.T, f *fixture, chatID, senderID string, n int) []*entity.Message {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	messages := make([]*entity.Message, 0, n)
	for i := 0; i < n; i++ {
		message := &entity.Message{
			ChatID:    chatID,
			SenderID:  senderID,
			Content:   "seeded",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, f.messageRepo.Create(context.Background(), message))
		messages = append(messages, message)
	}
	return messages
}

func TestGetMessagesPagination(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()
	seeded := seedMessages(t, f, "chat-1", "alice", 25)

	page1, err := f.uc.GetMessages(ctx, "bob", "chat-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, page1.TotalPages)
	assert.Equal(t, 1, page1.CurrentPage)
	assert.True(t, page1.HasMore)
	require.Len(t, page1.Messages, 20)

	// Page one is the newest 20, returned ascending for display.
	assert.Equal(t, seeded[5].ID, page1.Messages[0].ID)
	assert.Equal(t, seeded[24].ID, page1.Messages[19].ID)
	for i := 1; i < len(page1.Messages); i++ {
		assert.True(t, page1.Messages[i-1].CreatedAt.Before(page1.Messages[i].CreatedAt))
	}

	page2, err := f.uc.GetMessages(ctx, "bob", "chat-1", 2, 20)
	require.NoError(t, err)
	assert.False(t, page2.HasMore)
	require.Len(t, page2.Messages, 5)
	assert.Equal(t, seeded[0].ID, page2.Messages[0].ID)
}

func TestGetMessagesRequiresMembership(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")

	_, err := f.uc.GetMessages(context.Background(), "mallory", "chat-1", 1, 20)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestGetNewerMessagesRespectsWatermark(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()
	seeded := seedMessages(t, f, "chat-1", "alice", 10)

	watermark := seeded[6].CreatedAt
	newer, err := f.uc.GetNewerMessages(ctx, "bob", "chat-1", watermark, 20)
	require.NoError(t, err)
	require.Len(t, newer, 3)
	assert.Equal(t, seeded[7].ID, newer[0].ID)
	assert.Equal(t, seeded[9].ID, newer[2].ID)
}

func TestGetMessageContextCentersTarget(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()
	seeded := seedMessages(t, f, "chat-1", "alice", 30)

	window, err := f.uc.GetMessageContext(ctx, "bob", seeded[15].ID, 10)
	require.NoError(t, err)
	require.Len(t, window, 10)

	found := false
	for _, message := range window {
		if message.ID == seeded[15].ID {
			found = true
		}
	}
	assert.True(t, found)
	for i := 1; i < len(window); i++ {
		assert.True(t, window[i-1].CreatedAt.Before(window[i].CreatedAt))
	}
}

func TestSearchMessages(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "deploy went fine"})
	require.NoError(t, err)
	_, err = f.uc.SendMessage(ctx, "alice", SendMessageInput{ChatID: "chat-1", Content: "lunch?"})
	require.NoError(t, err)

	page, err := f.uc.SearchMessages(ctx, "bob", "chat-1", "deploy", nil, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "deploy went fine", page.Messages[0].Content)
}

func TestIsMember(t *testing.T) {
	f, _ := newFixture(t, "alice", "bob")
	ctx := context.Background()

	ok, err := f.uc.IsMember(ctx, "chat-1", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.uc.IsMember(ctx, "chat-1", "mallory")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.uc.IsMember(ctx, "missing-chat", "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}
