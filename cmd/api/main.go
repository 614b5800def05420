package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"houseshower/internal/adapter/api"
	"houseshower/internal/adapter/api/handler"
	apimiddleware "houseshower/internal/adapter/api/middleware"
	"houseshower/internal/adapter/api/router"
	"houseshower/internal/adapter/api/view"
	"houseshower/internal/adapter/repository"
	"houseshower/internal/infrastructure/ratelimit"
	"houseshower/internal/infrastructure/storage"
	"houseshower/internal/infrastructure/websocket"
	"houseshower/internal/usecase"
	"houseshower/pkg/config"
	"houseshower/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment, cfg.LogFile)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	productRepo, err := repository.NewHTTPProductRepository(cfg.BackendURL, cfg.ProjectName, cfg.GatewayTimeout)
	if err != nil {
		log.Fatalf("Invalid product API address: %v", err)
	}

	storageClient, err := storage.NewCloudStorageClient(
		ctx,
		cfg.StorageBucket,
		cfg.StoragePublicBaseURL,
		cfg.CredentialsPath,
		cfg.MaxUploadBytes,
	)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	validator := api.NewValidator()

	productUseCase := usecase.NewProductUseCase(productRepo, storageClient, wsManager, validator.Engine())
	authUseCase := usecase.NewAuthUseCase(usecase.AdminCredentials{
		Name:  cfg.AdminName,
		Email: cfg.AdminEmail,
	}, validator.Engine())

	// The page is still served when the product API is down; guests see an
	// empty list until an admin refreshes.
	if products, err := productUseCase.LoadAll(ctx); err != nil {
		logger.Error("Initial product load failed: %v", err)
	} else {
		logger.Info("Loaded %d products for %s", len(products), cfg.ProjectName)
	}

	sessions := apimiddleware.NewSessionMiddleware(cfg.SessionSecret, cfg.IsProduction())

	limiter := ratelimit.NewRateLimiter(ratelimit.DefaultLimits())
	limiter.StartCleanupRoutine(ctx.Done())

	handler.Setup(authUseCase, productUseCase, sessions)
	handler.SetupHealthHandler(func() int { return len(productUseCase.Products()) })
	handler.SetupUploadHandler(storageClient)
	handler.SetupWebSocketHandler(wsManager)

	renderer, err := view.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("10M"))

	e.Validator = validator
	e.Renderer = renderer

	router.Setup(e, sessions, limiter)

	go func() {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}
