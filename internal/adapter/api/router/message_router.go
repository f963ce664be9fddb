package router

import (
	"github.com/labstack/echo/v4"

	"parley/internal/adapter/api/handler"
	"parley/internal/adapter/api/middleware"
)

// SetupMessageRouter mounts the message REST surface. Static segments
// (unread, search, context, react, mark-read, mark-seen) take precedence
// over the :chatId parameter routes.
func SetupMessageRouter(e *echo.Echo, messageHandler *handler.MessageHandler, authMiddleware *middleware.AuthMiddleware) {
	messageGroup := e.Group("/message")
	messageGroup.Use(authMiddleware.Authenticate)

	messageGroup.POST("", messageHandler.SendMessage)
	messageGroup.GET("/unread", messageHandler.GetUnreadCounts)
	messageGroup.GET("/unread/:chatId", messageHandler.GetUnreadCount)
	messageGroup.GET("/search", messageHandler.SearchMessages)
	messageGroup.GET("/context/:messageId", messageHandler.GetMessageContext)
	messageGroup.POST("/react/:messageId", messageHandler.ToggleReaction)
	messageGroup.POST("/delivered/:messageId", messageHandler.MarkDelivered)
	messageGroup.POST("/mark-read/:chatId", messageHandler.MarkChatRead)
	messageGroup.POST("/mark-seen/:chatId", messageHandler.MarkChatSeen)
	messageGroup.GET("/:chatId", messageHandler.GetMessages)
	messageGroup.GET("/:chatId/newer", messageHandler.GetNewerMessages)
	messageGroup.PUT("/:messageId", messageHandler.EditMessage)
	messageGroup.DELETE("/:messageId", messageHandler.DeleteMessage)
}
