package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pampapro/internal/config"
	"pampapro/internal/db"
	"pampapro/internal/email"
	"pampapro/internal/events"
	"pampapro/internal/face"
	apihttp "pampapro/internal/http"
	"pampapro/internal/repository"
	"pampapro/internal/service"
	"pampapro/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}

	var (
		store      storage.Store
		uploadsDir string
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverCloudinary:
		cloud, err := storage.NewCloudinaryStore(
			cfg.Storage.CloudinaryCloudName,
			cfg.Storage.CloudinaryAPIKey,
			cfg.Storage.CloudinaryAPISecret,
			cfg.Storage.CloudinaryFolder,
			httpClient,
		)
		if err != nil {
			logger.Fatal("cloudinary store init", zap.Error(err))
		}
		store = cloud
	default:
		local, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.PublicBaseURL)
		if err != nil {
			logger.Fatal("local store init", zap.Error(err))
		}
		store = local
		uploadsDir = local.Dir()
	}

	var providers []face.Provider
	if cfg.Face.AzureEndpoint != "" && cfg.Face.AzureKey != "" {
		// Sin timeout de cliente: cada llamada queda acotada por FACE_PROVIDER_TIMEOUT.
		providers = append(providers, face.NewAzureClient(cfg.Face.AzureEndpoint, cfg.Face.AzureKey, cfg.Face.Timeout, &http.Client{}, logger))
	} else {
		logger.Warn("azure face provider not configured")
	}
	registry := face.NewRegistry(providers...)
	thresholds := face.Thresholds{
		MinConfidence: cfg.Face.ConfidenceThreshold,
		RejectQuality: cfg.Face.RejectQuality,
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	publisher := events.NewNoopPublisher()
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("nats publisher init failed", zap.Error(err))
		} else {
			publisher = natsPublisher
		}
	}
	defer publisher.Close()

	limiter := service.NewMemoryRateLimiter(cfg.Verification.RateWindow, cfg.Verification.RateMax)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory rate limiter", zap.Error(err))
		} else {
			limiter = service.NewRedisRateLimiter(redisClient, cfg.Verification.RateWindow, cfg.Verification.RateMax)
		}
		cancel()
	}

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	tokenVerifier := service.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	userRepo := repository.NewPgUserRepository(pool)
	verificationRepo := repository.NewPgVerificationRepository(pool)
	uploadRepo := repository.NewPgUploadRepository(pool)

	userSvc := service.NewUserService(logger, userRepo)
	uploadSvc := service.NewUploadService(logger, store, uploadRepo)
	verificationSvc := service.NewVerificationService(
		logger,
		userRepo,
		verificationRepo,
		store,
		registry,
		thresholds,
		cfg.Face.Provider,
		limiter,
		publisher,
		emailSender,
	)

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Logger:        logger,
		TokenVerifier: tokenVerifier,
		CurrentUsers:  userSvc,
		Users:         apihttp.NewUserHandler(logger, userSvc),
		Verifications: apihttp.NewVerificationHandler(logger, verificationSvc),
		Uploads:       apihttp.NewUploadHandler(logger, uploadSvc),
		Health:        apihttp.NewHealthHandler(logger, pool),
		UploadsDir:    uploadsDir,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.Storage.Driver))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
