package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"parley/internal/client/paging"
	"parley/internal/domain/entity"
)

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorInfo      `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is the authenticated REST surface of the message service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("%s %s: %s: %s", method, path, env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// SendMessage posts a durable message; the returned entity carries the
// server-assigned id and timestamps.
func (c *Client) SendMessage(ctx context.Context, chatID, content, replyTo string) (*entity.Message, error) {
	payload := map[string]string{"chatId": chatID, "content": content}
	if replyTo != "" {
		payload["replyTo"] = replyTo
	}
	var result struct {
		Message *entity.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/message", payload, &result); err != nil {
		return nil, err
	}
	return result.Message, nil
}

func (c *Client) EditMessage(ctx context.Context, messageID, content string) (*entity.Message, error) {
	var message entity.Message
	err := c.do(ctx, http.MethodPut, "/message/"+messageID, map[string]string{"content": content}, &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) (*entity.Message, error) {
	var message entity.Message
	if err := c.do(ctx, http.MethodDelete, "/message/"+messageID, nil, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) ToggleReaction(ctx context.Context, messageID, emoji string) (*entity.Message, error) {
	var message entity.Message
	err := c.do(ctx, http.MethodPost, "/message/react/"+messageID, map[string]string{"emoji": emoji}, &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) UnreadCounts(ctx context.Context) (map[string]int64, error) {
	var result struct {
		Unread map[string]int64 `json:"unread"`
	}
	if err := c.do(ctx, http.MethodGet, "/message/unread", nil, &result); err != nil {
		return nil, err
	}
	return result.Unread, nil
}

func (c *Client) MarkDelivered(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodPost, "/message/delivered/"+messageID, nil, nil)
}

func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/message/mark-read/"+chatID, nil, nil)
}

func (c *Client) MarkSeen(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/message/mark-seen/"+chatID, nil, nil)
}

// FetchPage implements paging.Fetcher.
func (c *Client) FetchPage(ctx context.Context, chatID string, page, limit int) (*paging.Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var result struct {
		Messages    []*entity.Message `json:"messages"`
		TotalPages  int               `json:"totalPages"`
		CurrentPage int               `json:"currentPage"`
		HasMore     bool              `json:"hasMore"`
	}
	if err := c.do(ctx, http.MethodGet, "/message/"+chatID+"?"+query.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &paging.Page{
		Messages:    result.Messages,
		TotalPages:  result.TotalPages,
		CurrentPage: result.CurrentPage,
		HasMore:     result.HasMore,
	}, nil
}

// FetchNewer implements paging.Fetcher.
func (c *Client) FetchNewer(ctx context.Context, chatID string, after time.Time, limit int) ([]*entity.Message, error) {
	query := url.Values{}
	query.Set("after", after.Format(time.RFC3339Nano))
	query.Set("limit", strconv.Itoa(limit))

	var result struct {
		Messages []*entity.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/message/"+chatID+"/newer?"+query.Encode(), nil, &result)
	if err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// FetchContext implements paging.Fetcher.
func (c *Client) FetchContext(ctx context.Context, messageID string, limit int) ([]*entity.Message, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var result struct {
		Messages []*entity.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/message/context/"+messageID+"?"+query.Encode(), nil, &result)
	if err != nil {
		return nil, err
	}
	return result.Messages, nil
}
