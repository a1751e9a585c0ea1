package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-agent/internal/agent"
	"github.com/capitalize-ai/scheduling-agent/internal/config"
	"github.com/capitalize-ai/scheduling-agent/internal/handler"
	"github.com/capitalize-ai/scheduling-agent/internal/llm"
	natsclient "github.com/capitalize-ai/scheduling-agent/internal/nats"
	"github.com/capitalize-ai/scheduling-agent/internal/store"
	"github.com/capitalize-ai/scheduling-agent/internal/timeutil"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
	"github.com/capitalize-ai/scheduling-agent/pkg/tracing"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server exposing /chat, the direct calendar
endpoints, health probes and Prometheus metrics.

Configuration is read from the environment (and a .env file if present).
See SCHEDULER_TIMEZONE, DATABASE_URL, HISTORY_BACKEND and LLM_PROVIDER.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.ServerPort = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides SERVER_PORT)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting scheduler", zap.String("version", version))

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "scheduling-agent", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.WithoutCancel(ctx), tp) }()
		}
	}

	loc, err := timeutil.LoadZone(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid SCHEDULER_TIMEZONE: %w", err)
	}

	db, cal, reg, err := openCalendar(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	checks := map[string]handler.Pinger{"database": db}

	history, closeHistory, err := openHistory(ctx, cfg, db, loc, log, checks)
	if err != nil {
		return err
	}
	defer closeHistory()

	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), cfg.LLMAPIKey())
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	orchestrator, err := agent.New(llmClient, reg, history, agent.Config{
		Model:             cfg.LLMModel,
		MaxTokens:         cfg.LLMMaxTokens,
		MaxToolIterations: cfg.MaxToolIterations,
		HistoryWindow:     cfg.HistoryWindow,
		LLMTimeout:        cfg.LLMTimeout,
		ChatTimeout:       cfg.ChatTimeout,
	}, agent.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Logger:              log,
		Health:              handler.NewHealthHandler(db.Dialect(), checks),
		Events:              handler.NewEventHandler(cal, log),
		Chat:                handler.NewChatHandler(orchestrator, log),
		JWTSecret:           cfg.JWTSecret,
		Location:            loc,
		AllowClientTimezone: cfg.AllowClientTimezone,
		CORSOrigins:         cfg.CORSOrigins,
		RateLimitRequests:   cfg.RateLimitRequests,
		RateLimitWindow:     cfg.RateLimitWindow,
		IPRateLimitRequests: cfg.IPRateLimitRequests,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("port", cfg.ServerPort),
			zap.String("timezone", loc.String()),
			zap.String("database", db.Dialect()),
			zap.String("history", cfg.HistoryBackend),
			zap.String("llm_provider", llmClient.Name()),
			zap.Strings("llm_models", llmClient.Models()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}

// openHistory selects the conversation history backend. The returned func
// releases whatever it opened.
func openHistory(ctx context.Context, cfg *config.Config, db *store.DB, loc *time.Location, log *logger.Logger, checks map[string]handler.Pinger) (agent.History, func(), error) {
	if cfg.HistoryBackend != config.HistoryNATS {
		return store.NewHistoryStore(db, loc), func() {}, nil
	}

	client, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	history := natsclient.NewHistoryStore(client, loc, log)
	if err := history.EnsureStream(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ensure history stream: %w", err)
	}

	checks["nats"] = client
	return history, client.Close, nil
}
