package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"datum/internal/auth"
	"datum/internal/authz"
	"datum/internal/config"
	"datum/internal/dms"
	"datum/internal/handler"
	"datum/internal/metrics"
	"datum/internal/middleware"
	"datum/internal/repository/postgres"
	"datum/internal/service"
	authsvc "datum/internal/service/auth"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create JWT verifier for the Keycloak realm
	jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.KeycloakJWKSURL, cfg.KeycloakIssuer, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// Create pgx connection pool
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if cfg.Environment == "dev" {
		if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
	}

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	userRepo := postgres.NewUserRepository(repoConfig)
	folderRepo := postgres.NewFolderRepository(repoConfig)
	purchaseRepo := postgres.NewPurchaseRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// External systems
	documentStore := dms.NewOpenKMClient(dms.Config{
		BaseURL:  cfg.OpenKMURL,
		Username: cfg.OpenKMUsername,
		Password: cfg.OpenKMPassword,
		BasePath: cfg.OpenKMBasePath,
		Timeout:  cfg.UpstreamTimeout,
	}, logger)
	identityProvider := auth.NewKeycloakAdminClient(cfg.KeycloakURL, cfg.KeycloakRealm, auth.AdminCredentials{
		Realm:    cfg.KeycloakAdminRealm,
		Username: cfg.KeycloakAdminUsername,
		Password: cfg.KeycloakAdminPassword,
	}, cfg.UpstreamTimeout, logger)
	tokenClient := auth.NewTokenClient(cfg.KeycloakURL, cfg.KeycloakRealm, cfg.UpstreamTimeout)

	m := metrics.New()

	// Create services
	folderService := service.NewFolderService(folderRepo, purchaseRepo, txManager, documentStore, m, logger)
	purchaseService := service.NewPurchaseService(purchaseRepo, folderRepo, txManager, folderService, documentStore, m, logger)
	documentService := service.NewDocumentService(purchaseService, documentStore, m, logger)
	userService := service.NewUserService(userRepo, folderRepo, identityProvider, logger)
	accountService := service.NewAccountService(cfg.KeycloakClientID, tokenClient, jwtVerifier, identityProvider, userRepo, logger)
	authorizer := authsvc.NewOwnerBasedAuthorizer(folderRepo, purchaseRepo)

	logger.Info("services initialized")

	policy, err := authz.Load()
	if err != nil {
		log.Fatalf("Failed to load authorization policy: %v", err)
	}

	// Create HTTP router (Go 1.22+ enhanced patterns); every route is
	// checked against the policy
	router := handler.NewRouter(policy, middleware.Authenticate(jwtVerifier, userService, logger), m)
	err = router.RegisterRoutes(&handler.Handlers{
		Health:    handler.NewHealthHandler(pool, logger),
		Metrics:   m.Handler(),
		Auth:      handler.NewAuthHandler(accountService, logger),
		Users:     handler.NewUserHandler(userService, logger),
		Folders:   handler.NewFolderHandler(folderService, purchaseService, authorizer, logger),
		Purchases: handler.NewPurchaseHandler(purchaseService, documentService, authorizer, logger),
		Documents: handler.NewDocumentHandler(documentService, purchaseService, authorizer, logger),
	})
	if err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	// Build middleware chain
	var h http.Handler = router

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → RequestID → Recovery → Routes (metrics and auth per route)
	h = middleware.Recovery(logger, m)(h)
	h = middleware.RequestID(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:       strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:       []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:       []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:       []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials:     true,
		MaxAge:               3600,
		OptionsSuccessStatus: http.StatusOK,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.UpstreamTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
