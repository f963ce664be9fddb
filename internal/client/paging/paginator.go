package paging

import (
	"context"
	"log"
	"sync"
	"time"

	"parley/internal/client/store"
	"parley/internal/domain/entity"
)

// Page is one REST page as served by GET /message/:chatId.
type Page struct {
	Messages    []*entity.Message
	TotalPages  int
	CurrentPage int
	HasMore     bool
}

// Fetcher is the REST read surface the controller paginates against.
type Fetcher interface {
	FetchPage(ctx context.Context, chatID string, page, limit int) (*Page, error)
	FetchNewer(ctx context.Context, chatID string, after time.Time, limit int) ([]*entity.Message, error)
	FetchContext(ctx context.Context, messageID string, limit int) ([]*entity.Message, error)
}

// Viewport abstracts the scroll surface: merges that grow the window must
// preserve the user's distance from the bottom, and jumps center the target.
type Viewport interface {
	PreserveDistanceFromBottom(merge func())
	NearBottom() bool
	CenterOn(messageID string)
}

type chatCursor struct {
	loadedPages  int
	hasMoreOlder bool
	loadingOlder bool
	loadingNewer bool
	jumpLocked   bool
}

// Controller keeps each chat's window gap-free under three competing fetch
// modes. The per-chat flags are plain guards, not a queue: an attempt that
// collides with an in-flight fetch of the same or a conflicting kind is
// dropped and the caller retries on the next scroll event.
type Controller struct {
	mu       sync.Mutex
	store    *store.Store
	fetcher  Fetcher
	viewport Viewport
	limit    int
	cursors  map[string]*chatCursor
}

func NewController(st *store.Store, fetcher Fetcher, viewport Viewport, limit int) *Controller {
	if limit < 1 {
		limit = 20
	}
	return &Controller{
		store:    st,
		fetcher:  fetcher,
		viewport: viewport,
		limit:    limit,
		cursors:  map[string]*chatCursor{},
	}
}

func (c *Controller) cursor(chatID string) *chatCursor {
	cur, ok := c.cursors[chatID]
	if !ok {
		cur = &chatCursor{hasMoreOlder: true}
		c.cursors[chatID] = cur
	}
	return cur
}

// LoadInitial fetches page one for a chat that has nothing loaded yet.
func (c *Controller) LoadInitial(ctx context.Context, chatID string) error {
	c.mu.Lock()
	cur := c.cursor(chatID)
	if cur.loadingOlder || cur.loadedPages > 0 {
		c.mu.Unlock()
		return nil
	}
	cur.loadingOlder = true
	c.mu.Unlock()

	defer c.release(chatID, func(cur *chatCursor) { cur.loadingOlder = false })

	page, err := c.fetcher.FetchPage(ctx, chatID, 1, c.limit)
	if err != nil {
		return err
	}

	c.merge(page.Messages)

	c.mu.Lock()
	cur = c.cursor(chatID)
	cur.loadedPages = 1
	cur.hasMoreOlder = page.HasMore
	c.mu.Unlock()

	return nil
}

// LoadOlder requests the next older page. Returns false when the attempt was
// dropped by a guard or the beginning of history was already reached.
func (c *Controller) LoadOlder(ctx context.Context, chatID string) (bool, error) {
	c.mu.Lock()
	cur := c.cursor(chatID)
	if cur.loadingOlder || cur.jumpLocked || !cur.hasMoreOlder || cur.loadedPages == 0 {
		c.mu.Unlock()
		return false, nil
	}
	cur.loadingOlder = true
	next := cur.loadedPages + 1
	c.mu.Unlock()

	defer c.release(chatID, func(cur *chatCursor) { cur.loadingOlder = false })

	page, err := c.fetcher.FetchPage(ctx, chatID, next, c.limit)
	if err != nil {
		return false, err
	}

	c.viewport.PreserveDistanceFromBottom(func() {
		c.merge(page.Messages)
	})

	c.mu.Lock()
	cur = c.cursor(chatID)
	cur.loadedPages = next
	// Fewer than a full page means the beginning of history.
	cur.hasMoreOlder = len(page.Messages) == c.limit && page.HasMore
	c.mu.Unlock()

	return true, nil
}

// LoadNewer catches up past the watermark. Triggered only near the bottom of
// the viewport; dropped otherwise.
func (c *Controller) LoadNewer(ctx context.Context, chatID string) (bool, error) {
	if !c.viewport.NearBottom() {
		return false, nil
	}

	after := c.store.Watermark(chatID)
	if after.IsZero() {
		return false, nil
	}

	c.mu.Lock()
	cur := c.cursor(chatID)
	if cur.loadingNewer || cur.jumpLocked {
		c.mu.Unlock()
		return false, nil
	}
	cur.loadingNewer = true
	c.mu.Unlock()

	defer c.release(chatID, func(cur *chatCursor) { cur.loadingNewer = false })

	messages, err := c.fetcher.FetchNewer(ctx, chatID, after, c.limit)
	if err != nil {
		return false, err
	}

	c.viewport.PreserveDistanceFromBottom(func() {
		c.merge(messages)
	})

	return true, nil
}

// JumpToMessage centers the viewport on the target, fetching a context
// window first when the target is not loaded. The jump lock suppresses
// pagination triggers until SettleJump, so the context fetch and the
// scroll-observer pagination cannot fight each other.
func (c *Controller) JumpToMessage(ctx context.Context, chatID, messageID string) (bool, error) {
	c.mu.Lock()
	cur := c.cursor(chatID)
	if cur.jumpLocked {
		c.mu.Unlock()
		return false, nil
	}
	cur.jumpLocked = true
	c.mu.Unlock()

	if !c.store.Has(messageID) {
		window, err := c.fetcher.FetchContext(ctx, messageID, c.limit)
		if err != nil {
			c.release(chatID, func(cur *chatCursor) { cur.jumpLocked = false })
			return false, err
		}
		c.merge(window)
	}

	c.viewport.CenterOn(messageID)
	return true, nil
}

// SettleJump releases the jump lock once the programmatic scroll has settled.
func (c *Controller) SettleJump(chatID string) {
	c.release(chatID, func(cur *chatCursor) { cur.jumpLocked = false })
}

// JumpLocked reports whether pagination triggers are currently suppressed.
func (c *Controller) JumpLocked(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor(chatID).jumpLocked
}

// HasMoreOlder reports whether older pages remain.
func (c *Controller) HasMoreOlder(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor(chatID).hasMoreOlder
}

func (c *Controller) merge(messages []*entity.Message) {
	for _, message := range messages {
		c.store.Upsert(message)
	}
}

// release always clears a guard flag, success or failure, so a failed fetch
// can never permanently lock out later scroll-triggered fetches.
func (c *Controller) release(chatID string, clear func(*chatCursor)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.cursors[chatID]
	if !ok {
		log.Printf("release: no cursor for chat %s", chatID)
		return
	}
	clear(cur)
}
