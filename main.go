package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"courtside/config"
	"courtside/database"
	historyRepo "courtside/database/repository/history"
	"courtside/handlers"
	"courtside/middleware"
	"courtside/routes"
	"courtside/services/dialogue"
	"courtside/services/gateway"
	"courtside/services/intelligence"
	"courtside/services/notifier"
	"courtside/services/session"
	"courtside/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := utils.NewLogger(cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	location, err := time.LoadLocation(cfg.ClubTimezone)
	if err != nil {
		logger.Sugar().Fatalf("main: invalid club timezone %q: %v", cfg.ClubTimezone, err)
	}

	sessionRedis, err := utils.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisSessionDB)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to session redis: %v", err)
	}
	guardRedis, err := utils.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGuardDB)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to guard redis: %v", err)
	}

	mongoClient, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to mongodb: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := historyRepo.EnsureIndexes(ctx, mongoClient, cfg.DatabaseName); err != nil {
		cancel()
		logger.Sugar().Fatalf("main: failed to create history indexes: %v", err)
	}
	cancel()

	heuristic := intelligence.NewHeuristic(cfg.Sports, cfg.MaxDuration, cfg.EscalationKeywords, location)

	var interpreter intelligence.Interpreter
	if cfg.GeminiAPIKey != "" {
		gem, err := intelligence.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxToolIterations, logger)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize gemini client: %v", err)
		}
		defer gem.Close()
		interpreter = gem
	} else {
		logger.Info("no model api key configured, using the deterministic interpreter")
		interpreter = intelligence.NewDeterministic(heuristic)
	}

	dialogueService := &dialogue.DefaultDialogueService{
		Config:      cfg,
		Logger:      logger,
		Sessions:    session.NewStore(sessionRedis, logger),
		Dedup:       session.NewDedup(guardRedis),
		Flow:        session.NewFlowGuard(guardRedis),
		Gateway:     gateway.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, logger),
		Heuristic:   heuristic,
		Interpreter: interpreter,
		History:     historyRepo.NewMongoHistoryRepo(mongoClient, cfg.DatabaseName),
		Sender:      notifier.NewWhatsAppSender(cfg.WhatsAppToken, cfg.WhatsAppPhoneID, logger),
		Location:    location,
	}

	webhookHandler := handlers.NewWebhookHandler(dialogueService, cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, logger)
	voiceHandler := handlers.NewVoiceHandler(dialogueService, cfg.GoogleServiceAccountFile, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler(logger))
	router.Use(middleware.NewRateLimiter(cfg.MaxRequestsPerMin, logger).Middleware())

	routes.RegisterRoutes(router, webhookHandler, voiceHandler)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.AppPort,
		Handler: router,
	}

	go func() {
		logger.Sugar().Infof("Starting server on %s...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: forced shutdown: %v", err)
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Warn("failed to disconnect mongodb", zap.Error(err))
	}
	_ = sessionRedis.Close()
	_ = guardRedis.Close()

	logger.Info("Server exited")
}
