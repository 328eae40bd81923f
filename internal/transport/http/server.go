package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"ziabot/internal/agent"
	"ziabot/internal/ai"
	appsvc "ziabot/internal/app"
	"ziabot/internal/bootstrap"
	"ziabot/internal/cache"
	"ziabot/internal/platform/rabbitmq"
	"ziabot/internal/repository"
	"ziabot/internal/transport/http/handler"
	"ziabot/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	fileRepo := repository.NewFileRepository(app.MySQL)

	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	eventPublisher := rabbitmq.NewEventPublisher(app.MQConn, app.Config.RabbitMQ.ChatEventQueue)
	runner := agent.NewRunner(
		ai.NewOpenAICompatibleClient(),
		app.Config.LLM.BaseURL,
		app.Config.LLM.APIKey,
	)
	models := agent.ModelSet{
		Default:     app.Config.Agents.DefaultModel,
		Analyst:     app.Config.Agents.AnalystModel,
		Synthesizer: app.Config.Agents.SynthesizerModel,
		Architect:   app.Config.Agents.ArchitectModel,
	}

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := appsvc.NewChatService(
		sessionRepo,
		messageRepo,
		fileRepo,
		historyCache,
		eventPublisher,
		runner,
		models,
	)
	fileService := appsvc.NewFileService(fileRepo)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	fileHandler := handler.NewFileHandler(fileService, app.Config.MaxFileSizeBytes())
	healthHandler := handler.NewHealthHandler(app)

	router.StaticFile("/", "web/index.html")
	router.GET("/healthz", healthHandler.Check)

	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)

	protected := router.Group("/")
	protected.Use(middleware.Auth(authService, app.Config.Auth.JWTSecret))
	protected.GET("/me", authHandler.Me)
	protected.POST("/upload_file", fileHandler.Upload)
	protected.POST("/chat", chatHandler.Chat)
	protected.GET("/sessions", chatHandler.ListSessions)
	protected.GET("/session/:session_id", chatHandler.SessionMessages)
	protected.GET("/all_chats", chatHandler.AllChats)

	return router
}
