package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/oauth"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	slog.Info("database ready")

	appRouter, err := NewHandler(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			db.Close,
		},
	}, nil
}

// NewHandler wires repositories, services and handlers on top of an open
// database and returns the routed HTTP handler.
func NewHandler(cfg *config.Config, db *database.DB) (http.Handler, error) {
	store, err := storage.New(cfg.UploadRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	m := metrics.New()

	tokens := service.NewTokenService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	auditService := service.NewAuditService(auditRepo)
	authService, err := service.NewAuthService(userRepo, tokens, hasher, auditService)
	if err != nil {
		return nil, err
	}
	userService := service.NewUserService(userRepo, hasher, auditService)
	imageService := service.NewImageService(store, cfg.MaxImageSize, m)
	if err := imageService.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to prepare image directory: %w", err)
	}
	productService := service.NewProductService(productRepo, imageService, auditService, cfg.MaxProductImages)

	cookies := middleware.Cookies{AccessTTL: cfg.JWTAccessTTL, RefreshTTL: cfg.JWTRefreshTTL}
	authMiddleware := middleware.NewAuthMiddleware(service.NewSessionGuard(tokens), cookies, m)

	var google handler.OAuthProvider
	if cfg.GoogleEnabled() {
		google = oauth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	} else {
		slog.Info("Google sign-in disabled; GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_CALLBACK_URL are not all set")
	}

	return router.New(cfg, authMiddleware, router.Handlers{
		Auth:    handler.NewAuthHandler(authService, cookies, google, cfg.OAuthSuccessRedirect),
		User:    handler.NewUserHandler(userService),
		Product: handler.NewProductHandler(productService, cfg.MaxUploadSize),
		Audit:   handler.NewAuditHandler(auditService),
		Upload:  handler.NewUploadHandler(imageService),
		Health:  handler.NewHealthHandler(db),
	}, m), nil
}

// Run serves until SIGINT/SIGTERM or ctx is cancelled, then drains in-flight
// requests before closing the pool.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.cleanup()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(shutdownCtx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}
