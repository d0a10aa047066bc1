// Package main is the entry point for the support chat API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/freshfold/support-chat/internal/config"
	"github.com/freshfold/support-chat/internal/handler"
	"github.com/freshfold/support-chat/internal/llm"
	"github.com/freshfold/support-chat/internal/mongodb"
	natsclient "github.com/freshfold/support-chat/internal/nats"
	"github.com/freshfold/support-chat/internal/push"
	"github.com/freshfold/support-chat/internal/service"
	"github.com/freshfold/support-chat/internal/store"
	"github.com/freshfold/support-chat/pkg/logger"
	"github.com/freshfold/support-chat/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server")

	ctx := context.Background()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	// Persistent store
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	auto := service.AutoResponder{
		AgentID:   cfg.AutoResponderID,
		AgentName: cfg.AutoResponderName,
		Text:      cfg.AutoResponseText,
	}
	if err := service.Bootstrap(ctx, st, auto); err != nil {
		log.Fatal("failed to bootstrap store", zap.Error(err))
	}

	// Push delivery
	gateway := openPush(ctx, cfg, log)
	defer gateway.Close()

	// Realtime events
	var (
		events     service.EventPublisher = service.NopPublisher{}
		feed       handler.Subscriber
		natsHealth handler.ConnChecker
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streams := natsclient.NewStreamManager(natsClient, log)
		if err := streams.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		events = streams
		feed = handler.NATSSubscriber{Streams: streams}
		natsHealth = natsClient
	} else {
		log.Info("NATS_URL not set, realtime events disabled")
	}

	// Reply suggestions
	llmClient, err := llm.Select(llm.Provider(cfg.DefaultLLM), map[llm.Provider]string{
		llm.ProviderAnthropic: cfg.AnthropicAPIKey,
		llm.ProviderOpenAI:    cfg.OpenAIAPIKey,
	})
	if err != nil {
		log.Warn("failed to create LLM client, reply suggestions disabled", zap.Error(err))
		llmClient = nil
	}

	// Initialize services
	deps := service.Deps{
		Store:  st,
		Events: events,
		Push:   gateway,
		Logger: log,
	}
	notifier := service.NewNotifier(deps)
	threadSvc := service.NewThreadService(deps)
	messageSvc := service.NewMessageService(deps, notifier, auto)
	broadcastSvc := service.NewBroadcastService(deps, threadSvc, notifier)
	notificationSvc := service.NewNotificationService(deps)
	suggestionSvc := service.NewSuggestionService(deps, llmClient)

	// Initialize handlers
	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:          cfg.JWTSecret,
		RateLimitRequests:  cfg.RateLimitRequests,
		RateLimitWindow:    cfg.RateLimitWindow,
		WriteLimitRequests: cfg.WriteLimitRequests,
	}, handler.Handlers{
		Health:        handler.NewHealthHandler(st, natsHealth),
		Threads:       handler.NewThreadHandler(threadSvc, messageSvc, log),
		Agent:         handler.NewAgentHandler(threadSvc, suggestionSvc, log),
		Broadcasts:    handler.NewBroadcastHandler(broadcastSvc, log),
		Notifications: handler.NewNotificationHandler(notificationSvc, log),
		Stream:        handler.NewStreamHandler(threadSvc, feed, log),
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// openStore connects to MongoDB when configured and falls back to the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func(), error) {
	if cfg.MongoURI == "" {
		log.Warn("MONGO_URI not set, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	client, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, log)
	if err != nil {
		return nil, nil, err
	}
	db := client.Database(cfg.MongoDatabase)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		mongodb.Disconnect(context.Background(), client, log)
		return nil, nil, err
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Disconnect(ctx, client, log)
	}
	return mongodb.NewStore(client, db), closeFn, nil
}

// openPush builds the asynchronous push gateway. Without Firebase
// credentials pushes are dropped.
func openPush(ctx context.Context, cfg *config.Config, log *logger.Logger) *push.Async {
	fcfg := push.FirebaseConfig{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsFile: cfg.FirebaseCredentialsFile,
		ClientEmail:     cfg.FirebaseClientEmail,
		PrivateKey:      cfg.FirebasePrivateKey,
	}

	var next push.Gateway = push.Nop{}
	if fcfg.Enabled() {
		fcm, err := push.NewFCM(ctx, fcfg, log)
		if err != nil {
			log.Warn("failed to initialize FCM, push disabled", zap.Error(err))
		} else {
			next = fcm
		}
	} else {
		log.Info("Firebase not configured, push disabled")
	}
	return push.NewAsync(next, cfg.PushTimeout, log)
}
