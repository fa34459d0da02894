// Proposal chat server: a web frontend relaying questions to a Llama Stack agent.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/proposal-chat/internal/api"
	"github.com/ashureev/proposal-chat/internal/config"
	"github.com/ashureev/proposal-chat/internal/llamastack"
	"github.com/ashureev/proposal-chat/internal/middleware"
	"github.com/ashureev/proposal-chat/internal/relay"
	"github.com/ashureev/proposal-chat/internal/store"
	"github.com/ashureev/proposal-chat/internal/transcript"
	"github.com/ashureev/proposal-chat/web"
)

const (
	rateLimitRequests = 10
	rateLimitWindow   = time.Minute
)

func main() {
	// Bootstrap logger; replaced once the configured levels are known.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	// Configuration must parse before anything talks to the stack.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.RootLogLevel,
	})))
	appLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.AppLogLevel,
	}))

	slog.Info("Starting server", "port", cfg.Port, "model", cfg.ModelID, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	client, err := llamastack.NewClient(llamastack.ClientConfig{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.ClientTimeout,
	}, appLogger)
	if err != nil {
		slog.Error("Failed to initialize Llama Stack client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.Health(context.Background()); err != nil {
		slog.Error("Llama Stack health check failed", "error", err, "base_url", cfg.BaseURL)
		os.Exit(1)
	}
	slog.Info("Llama Stack connected", "base_url", cfg.BaseURL)

	// Register the agent and its session once; every question this process
	// relays rides the same pair.
	reg, err := relay.Register(context.Background(), client, cfg, appLogger)
	if err != nil {
		slog.Error("Failed to register agent", "error", err)
		os.Exit(1)
	}

	session := client.NewAgentSession(reg.AgentID, reg.SessionID)
	chat := relay.NewService(session, cfg.Stream, appLogger)

	transcripts, err := transcript.New(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, appLogger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcripts.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	// Initialize handlers.
	limiter := api.NewRateLimiter(rateLimitRequests, rateLimitWindow)
	chatHandler := api.NewChatHandler(chat, transcripts, limiter, cfg.FrontendURL, cfg.IsDevelopment())
	feedbackHandler := api.NewFeedbackHandler(repo)
	configHandler := api.NewConfigHandler(cfg)
	healthHandler := api.NewHealthHandler(repo, client)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: []string{"*"}}))

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)
	feedbackHandler.RegisterRoutes(r)
	configHandler.RegisterRoutes(r)

	// Serve embedded widget (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: SSE responses require long write windows (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,                 // 0 = no timeout for SSE support
		IdleTimeout:  120 * time.Second, // 2 minutes for idle connections
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartRetentionWorker(ctx, repo, cfg.FeedbackTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
