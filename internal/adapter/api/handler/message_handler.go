package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"parley/internal/usecase"
	"parley/pkg/errors"
	"parley/pkg/response"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId" validate:"required"`
	Content string `json:"content" validate:"required"`
	ReplyTo string `json:"replyTo,omitempty"`
}

type editMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type reactRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

// SendMessage handles POST /message.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	result, err := h.messageUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ChatID:  req.ChatID,
		Content: req.Content,
		ReplyTo: req.ReplyTo,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, result)
}

// GetMessages handles GET /message/:chatId.
func (h *MessageHandler) GetMessages(c echo.Context) error {
	chatID := c.Param("chatId")
	userID := c.Get("uid").(string)

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	pageResult, err := h.messageUseCase.GetMessages(c.Request().Context(), userID, chatID, page, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, pageResult)
}

// GetNewerMessages handles GET /message/:chatId/newer?after&limit.
func (h *MessageHandler) GetNewerMessages(c echo.Context) error {
	chatID := c.Param("chatId")
	userID := c.Get("uid").(string)

	afterParam := c.QueryParam("after")
	if afterParam == "" {
		return response.Error(c, errors.Validation("after is required", nil))
	}
	after, err := parseTimestamp(afterParam)
	if err != nil {
		return response.Error(c, errors.Validation("after must be an RFC3339 timestamp", err))
	}

	limit := queryInt(c, "limit", 20)

	messages, err := h.messageUseCase.GetNewerMessages(c.Request().Context(), userID, chatID, after, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{"messages": messages})
}

// GetMessageContext handles GET /message/context/:messageId?limit.
func (h *MessageHandler) GetMessageContext(c echo.Context) error {
	messageID := c.Param("messageId")
	userID := c.Get("uid").(string)

	limit := queryInt(c, "limit", 20)

	messages, err := h.messageUseCase.GetMessageContext(c.Request().Context(), userID, messageID, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{"messages": messages})
}

// SearchMessages handles GET /message/search?chatId&query&date&page&limit.
func (h *MessageHandler) SearchMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	chatID := c.QueryParam("chatId")
	query := c.QueryParam("query")

	var date *time.Time
	if dateParam := c.QueryParam("date"); dateParam != "" {
		parsed, err := time.Parse("2006-01-02", dateParam)
		if err != nil {
			return response.Error(c, errors.Validation("date must be formatted YYYY-MM-DD", err))
		}
		date = &parsed
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	pageResult, err := h.messageUseCase.SearchMessages(c.Request().Context(), userID, chatID, query, date, page, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, pageResult)
}

// EditMessage handles PUT /message/:messageId.
func (h *MessageHandler) EditMessage(c echo.Context) error {
	messageID := c.Param("messageId")
	userID := c.Get("uid").(string)

	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.messageUseCase.EditMessage(c.Request().Context(), userID, messageID, req.Content)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, message)
}

// DeleteMessage handles DELETE /message/:messageId.
func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	messageID := c.Param("messageId")
	userID := c.Get("uid").(string)

	message, err := h.messageUseCase.DeleteMessage(c.Request().Context(), userID, messageID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, message)
}

// ToggleReaction handles POST /message/react/:messageId.
func (h *MessageHandler) ToggleReaction(c echo.Context) error {
	messageID := c.Param("messageId")
	userID := c.Get("uid").(string)

	var req reactRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.messageUseCase.ToggleReaction(c.Request().Context(), userID, messageID, req.Emoji)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, message)
}

// GetUnreadCounts handles GET /message/unread.
func (h *MessageHandler) GetUnreadCounts(c echo.Context) error {
	userID := c.Get("uid").(string)

	counts, err := h.messageUseCase.GetUnreadCounts(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{"unread": counts})
}

// GetUnreadCount handles GET /message/unread/:chatId.
func (h *MessageHandler) GetUnreadCount(c echo.Context) error {
	chatID := c.Param("chatId")
	userID := c.Get("uid").(string)

	count, err := h.messageUseCase.CountUnread(c.Request().Context(), userID, chatID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{"unread": count})
}

// MarkDelivered handles POST /message/delivered/:messageId.
func (h *MessageHandler) MarkDelivered(c echo.Context) error {
	messageID := c.Param("messageId")
	userID := c.Get("uid").(string)

	if err := h.messageUseCase.MarkDelivered(c.Request().Context(), userID, messageID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// MarkChatRead handles POST /message/mark-read/:chatId.
func (h *MessageHandler) MarkChatRead(c echo.Context) error {
	chatID := c.Param("chatId")
	userID := c.Get("uid").(string)

	if err := h.messageUseCase.MarkChatRead(c.Request().Context(), userID, chatID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// MarkChatSeen handles POST /message/mark-seen/:chatId.
func (h *MessageHandler) MarkChatSeen(c echo.Context) error {
	chatID := c.Param("chatId")
	userID := c.Get("uid").(string)

	count, err := h.messageUseCase.MarkChatSeen(c.Request().Context(), userID, chatID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{"seen": count})
}

func queryInt(c echo.Context, name string, defaultValue int) int {
	if raw := c.QueryParam(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
