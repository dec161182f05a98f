package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hamdars-go/internal/config"
	"hamdars-go/internal/handler"
	"hamdars-go/internal/middleware"
	"hamdars-go/internal/model"
	"hamdars-go/internal/pipeline"
	"hamdars-go/internal/repository"
	"hamdars-go/internal/service"
	"hamdars-go/pkg/database"
	"hamdars-go/pkg/es"
	"hamdars-go/pkg/kafka"
	"hamdars-go/pkg/llm"
	"hamdars-go/pkg/log"
	"hamdars-go/pkg/storage"
	"hamdars-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置与日志
	config.Init(*configPath)
	log.Init(config.Conf.Log.Level, config.Conf.Log.Format, config.Conf.Log.OutputPath)
	defer log.Sync()

	// 2. 初始化基础设施客户端
	database.InitMySQL(config.Conf.Database.MySQL.DSN)
	database.InitRedis(
		config.Conf.Database.Redis.Addr,
		config.Conf.Database.Redis.Password,
		config.Conf.Database.Redis.DB,
	)
	if err := es.InitES(config.Conf.Elasticsearch); err != nil {
		log.Fatal("初始化 Elasticsearch 失败", err)
	}
	storage.InitMinIO(config.Conf.MinIO)
	kafka.InitProducer(config.Conf.Kafka)

	// 3. 自动迁移数据库表结构
	err := database.DB.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.Chat{},
		&model.Progress{},
		&model.Content{},
		&model.Account{},
		&model.Invoice{},
		&model.ActionLog{},
	)
	if err != nil {
		log.Fatal("数据库迁移失败", err)
	}

	// 4. 依赖注入：repository -> service -> handler
	jwtManager := token.NewJWTManager(
		config.Conf.JWT.Secret,
		config.Conf.JWT.AccessTokenExpireHours,
		config.Conf.JWT.RefreshTokenExpireDays,
	)
	llmClient := llm.NewClient(config.Conf.LLM)

	userRepo := repository.NewUserRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)
	progressRepo := repository.NewProgressRepository(database.DB)
	contentRepo := repository.NewContentRepository(database.DB)
	accountRepo := repository.NewAccountRepository(database.DB)
	actionLogRepo := repository.NewActionLogRepository(database.DB)

	userService := service.NewUserService(userRepo, accountRepo, actionLogRepo, jwtManager, config.Conf.Chat)
	chatService := service.NewChatService(chatRepo, sessionRepo, userRepo, llmClient, kafka.ChatTurnPublisher{}, config.Conf.Chat)
	accountService := service.NewAccountService(accountRepo)
	progressService := service.NewProgressService(progressRepo)
	contentService := service.NewContentService(contentRepo, config.Conf.MinIO)
	adminService := service.NewAdminService(userRepo, accountRepo, chatRepo, config.Conf.Elasticsearch)

	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService)
	chatHandler := handler.NewChatHandler(chatService)
	wsHandler := handler.NewWsHandler(chatService, jwtManager, config.Conf.Chat)
	accountHandler := handler.NewAccountHandler(accountService)
	progressHandler := handler.NewProgressHandler(progressService)
	contentHandler := handler.NewContentHandler(contentService)
	adminHandler := handler.NewAdminHandler(adminService)

	// 5. 启动问答索引消费者
	indexer := pipeline.NewIndexer(config.Conf.Elasticsearch)
	go kafka.StartConsumer(config.Conf.Kafka, indexer)

	// 6. 配置路由
	gin.SetMode(config.Conf.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.IPRateLimitMiddleware(
		config.Conf.RateLimit.MaxRequests,
		time.Duration(config.Conf.RateLimit.WindowMinutes)*time.Minute,
	))

	// WebSocket 问答通道（处理器内部完成认证）
	router.GET("/ws/chat", wsHandler.Serve)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/admin/login", authHandler.AdminLogin)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/verify", middleware.AuthMiddleware(jwtManager), authHandler.Verify)
			auth.POST("/logout", middleware.AuthMiddleware(jwtManager), authHandler.Logout)
		}

		// 访客活动记录，无需登录
		api.POST("/activity", authHandler.GuestActivity)

		// 课程内容读取对已登录用户开放
		authed := api.Group("", middleware.AuthMiddleware(jwtManager))
		{
			authed.GET("/user/profile", userHandler.GetProfile)
			authed.PUT("/user/profile", userHandler.UpdateProfile)

			authed.POST("/chat", chatHandler.Ask)
			authed.GET("/chat/sessions", chatHandler.Sessions)
			authed.GET("/chat/history", chatHandler.History)

			authed.GET("/account", accountHandler.GetAccount)
			authed.GET("/account/packages", accountHandler.ListPackages)
			authed.POST("/account/invoices", accountHandler.CreateInvoice)
			authed.POST("/account/invoices/:id/pay", accountHandler.PayInvoice)

			authed.GET("/progress", progressHandler.GetProgress)
			authed.POST("/progress", progressHandler.SaveProgress)

			authed.GET("/content", contentHandler.GetContent)
		}

		admin := api.Group("/admin", middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware())
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/accounts", adminHandler.ListAccounts)
			admin.POST("/accounts/:id/balance", adminHandler.AdjustBalance)
			admin.GET("/chats/search", adminHandler.SearchChats)
			admin.GET("/stats", adminHandler.Stats)
			admin.POST("/content", contentHandler.UpsertContent)
			admin.POST("/content/attachment", contentHandler.UploadAttachment)
		}
	}

	// 7. 启动 HTTP 服务并支持优雅停机
	srv := &http.Server{
		Addr:    ":" + config.Conf.Server.Port,
		Handler: router,
	}

	go func() {
		log.Infof("服务启动，监听端口 %s", config.Conf.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("服务启动失败", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("收到停机信号，开始优雅停机...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("服务停机失败", err)
	}
	log.Info("服务已退出")
}
