package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/fanout"
	"messenger-service/internal/handlers"
	"messenger-service/internal/logging"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/registry"
	"messenger-service/internal/repositories"
	"messenger-service/internal/service"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.LogLevel)
	log := logging.Component("main")

	shutdownTracer, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTLPTarget)
	if err != nil {
		log.WithError(err).Fatal("failed to init tracing")
	}
	defer shutdownTracer(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to db")
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid redis url")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, presence will be process-local")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.Exchange)
	defer publisher.Close()
	log.WithField("mode", rabbitmq.PublisherMode(publisher)).Info("audit publisher ready")
	emitter := telemetry.NewAuditEmitter(publisher, "audit.messenger", serviceName, cfg.Environment)

	if cfg.AMQPURL != "" {
		if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange); err != nil {
			log.WithError(err).Warn("ws event publisher disabled")
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	files, err := storage.NewLocalStore(cfg.UploadDir, cfg.UploadBase)
	if err != nil {
		log.WithError(err).Fatal("failed to init file storage")
	}

	userRepo := repositories.NewUserRepo(database)
	blockRepo := repositories.NewBlockRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	reg := registry.New()
	hub := ws.NewHub(cfg.SendBuffer)
	dispatcher := fanout.New(hub, reg)
	presenceStore := presence.New(redisClient, cfg.PresenceTTL)
	jwtManager := middleware.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	chatService := service.NewChatService(chatRepo, messageRepo, userRepo, blockRepo, files, dispatcher)
	messageService := service.NewMessageService(chatRepo, messageRepo, userRepo, blockRepo, files, dispatcher)
	userService := service.NewUserService(userRepo, blockRepo, chatRepo, messageRepo, jwtManager, files, presenceStore, dispatcher)

	authHandler := handlers.NewAuthHandler(userService, emitter)
	userHandler := handlers.NewUserHandler(userService, emitter)
	chatHandler := handlers.NewChatHandler(chatService, emitter)
	messageHandler := handlers.NewMessageHandler(messageService)
	wsHandler := ws.NewHandler(hub, reg, presenceStore, dispatcher, chatRepo, userRepo)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static(cfg.UploadBase, cfg.UploadDir)

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	auth := middleware.RequireAuth(jwtManager)
	api := router.Group("/", auth)

	api.GET("/users/me", userHandler.Me)
	api.PATCH("/users/me", userHandler.UpdateMe)
	api.POST("/users/me/password", userHandler.ChangePassword)
	api.GET("/users/me/contacts", userHandler.Contacts)
	api.GET("/users/search", userHandler.Search)
	api.GET("/users/by-username/:username", userHandler.GetByUsername)
	api.GET("/users/:user_id", userHandler.Get)
	api.GET("/users/:user_id/status", userHandler.Status)
	api.GET("/users/:user_id/relationship", userHandler.Relationship)
	api.POST("/users/me/avatar", userHandler.UploadAvatar)
	api.POST("/users/:user_id/block", userHandler.Block)
	api.DELETE("/users/:user_id/block", userHandler.Unblock)
	api.GET("/users/me/blocked", userHandler.Blocked)

	api.GET("/chats", chatHandler.List)
	api.GET("/chats/search", chatHandler.Search)
	api.POST("/chats/direct", chatHandler.CreateDirect)
	api.POST("/chats/group", chatHandler.CreateGroup)
	api.GET("/chats/:chat_id", chatHandler.Get)
	api.POST("/chats/:chat_id/respond", chatHandler.Respond)
	api.PATCH("/chats/:chat_id", chatHandler.Update)
	api.POST("/chats/:chat_id/avatar", chatHandler.UploadAvatar)
	api.DELETE("/chats/:chat_id", chatHandler.Delete)
	api.POST("/chats/:chat_id/participants", chatHandler.AddParticipant)
	api.DELETE("/chats/:chat_id/participants/:user_id", chatHandler.RemoveParticipant)
	api.POST("/chats/:chat_id/leave", chatHandler.Leave)
	api.POST("/chats/:chat_id/mute", chatHandler.Mute)
	api.POST("/chats/:chat_id/read", chatHandler.MarkRead)

	api.GET("/chats/:chat_id/messages", messageHandler.List)
	api.POST("/chats/:chat_id/messages", messageHandler.Send)
	api.PATCH("/messages/:message_id", messageHandler.Edit)
	api.DELETE("/messages/:message_id", messageHandler.Delete)
	api.POST("/messages/:message_id/reactions", messageHandler.React)
	api.DELETE("/messages/:message_id/reactions", messageHandler.Unreact)

	api.GET("/ws", wsHandler.Handle)

	handlers.RegisterDebugRoutes(router, emitter, cfg.DebugRoutes)

	log.WithField("port", cfg.Port).Info("starting server")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
