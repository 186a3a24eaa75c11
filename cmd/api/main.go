//	@title			Media API
//	@version		1.0
//	@description	Browses a flat object store as a directory tree, and uploads and deletes its objects.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
//	@description				Shared API key.
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token issued with `api token <subject>`. Format: **Bearer {token}**

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/dinomatic/media/internal/auth"
	"github.com/dinomatic/media/internal/config"
	"github.com/dinomatic/media/internal/images"
	"github.com/dinomatic/media/internal/logging"
	"github.com/dinomatic/media/internal/metrics"
	appMiddleware "github.com/dinomatic/media/internal/middleware"
	"github.com/dinomatic/media/internal/namespace"
	"github.com/dinomatic/media/internal/storage"

	_ "github.com/dinomatic/media/docs/swagger"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.Logging()); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Sync() }()

	if len(os.Args) > 1 && os.Args[1] == "token" {
		issueToken(cfg, os.Args[2:])
		return
	}

	if cfg.APIKey == "" && cfg.JWTSecret == "" {
		logging.Warn("neither API_KEY nor JWT_SECRET is set; every API request will be rejected")
	}

	store, err := storage.New(context.Background(), cfg.Storage())
	if err != nil {
		logging.Fatal("object storage init failed", logging.Err(err), logging.String("driver", cfg.StorageDriver))
	}

	cache := namespace.NewCache(store, namespace.CacheOptions{
		Policy:       cfg.TreeCache,
		TTL:          cfg.TreeCacheTTL,
		BuildTimeout: cfg.TreeBuildTimeout,
		OnBuild: func(d time.Duration, stats namespace.Stats) {
			metrics.RecordTreeBuild(d, stats.Directories, stats.Objects, stats.Skipped)
			if stats.Skipped > 0 {
				logging.Warn("skipped malformed object ids", logging.Int("count", stats.Skipped))
			}
		},
	})

	// Wire dependencies: storage → service → handler
	imageSvc := images.NewService(store, cache)
	imageHandler := images.NewHandler(imageSvc, cfg.MaxUploadBytes)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	// Swagger UI: available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Public delivery
	r.Get("/images/*", imageHandler.Serve)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(appMiddleware.RequireAuth(auth.Verifier{APIKey: cfg.APIKey, JWTSecret: cfg.JWTSecret}))
		imageHandler.APIRoutes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logging.Info("server listening",
			logging.String("addr", srv.Addr),
			logging.String("env", cfg.AppEnv),
			logging.String("storage", cfg.StorageDriver),
			logging.String("tree_cache", cfg.TreeCache.String()),
		)
		logging.Info(fmt.Sprintf("swagger UI at http://localhost:%s/swagger/", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server error", logging.Err(err))
		}
	}()

	<-quit
	logging.Info("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Fatal("forced shutdown", logging.Err(err))
	}

	logging.Info("server stopped")
}

// issueToken prints a bearer token for the given subject: api token <subject> [ttl]
func issueToken(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: api token <subject> [ttl, default 720h]")
		os.Exit(2)
	}
	ttl := 30 * 24 * time.Hour
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid ttl %q: %v\n", args[1], err)
			os.Exit(2)
		}
		ttl = d
	}

	token, err := auth.IssueToken(cfg.JWTSecret, args[0], ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
