package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"parley/internal/adapter/api"
	"parley/internal/adapter/api/handler"
	apimiddleware "parley/internal/adapter/api/middleware"
	"parley/internal/adapter/api/router"
	"parley/internal/adapter/repository"
	"parley/internal/infrastructure/presence"
	"parley/internal/infrastructure/websocket"
	"parley/internal/usecase"
	"parley/pkg/config"
	"parley/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); serviceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis not reachable at %s, unread counters will fail until it is: %v", cfg.RedisAddr, err)
	}

	messageRepo := repository.NewFirestoreMessageRepository(firestoreClient)
	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	unreadRepo := repository.NewRedisUnreadRepository(redisClient)

	// All shared mutable state lives in these two service objects, built once
	// here and passed by reference.
	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	presenceRegistry := presence.NewRegistry(wsManager, cfg.PresenceTTL, cfg.PresenceSweep)
	presenceRegistry.Start(ctx)

	messageUseCase := usecase.NewMessageUseCase(messageRepo, chatRepo, userRepo, unreadRepo, wsManager)
	eventHandler := websocket.NewEventHandler(wsManager, messageUseCase, presenceRegistry)

	e := echo.New()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)

	messageHandler := handler.NewMessageHandler(messageUseCase)
	wsHandler := handler.NewWebSocketHandler(wsManager, eventHandler, authMiddleware)
	healthHandler := handler.NewHealthHandler()

	router.SetupHealthRouter(e, healthHandler)
	router.SetupMessageRouter(e, messageHandler, authMiddleware)
	router.SetupWebSocketRouter(e, wsHandler)

	logger.Info("Starting server on port %s (environment: %s)", cfg.ServerPort, cfg.Environment)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
