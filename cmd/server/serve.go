package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/voice-reader/internal/config"
	"github.com/lexiqai/voice-reader/internal/dialogue"
	"github.com/lexiqai/voice-reader/internal/observability"
	"github.com/lexiqai/voice-reader/internal/resilience"
	"github.com/lexiqai/voice-reader/internal/transport/telegram"
	"github.com/lexiqai/voice-reader/internal/transport/websocket"
	"github.com/lexiqai/voice-reader/internal/tts"
)

const (
	shutdownTimeout     = 30 * time.Second
	turnTimeout         = 5 * time.Minute
	healthCheckInterval = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the HTTP endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("state_backend", cfg.StateBackend).
		Int("max_chunk_length", cfg.MaxChunkLength).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Bool("websocket_enabled", cfg.WebSocketEnabled).
		Msg("Voice Reader starting")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := dialogue.NewEngine(
		store,
		newSynthesizer(cfg, logger),
		dialogue.WithMaxChunkLength(cfg.MaxChunkLength),
		dialogue.WithLogger(logger),
	)

	bot := telegram.NewBot(engine, telegram.Config{
		Token:       cfg.TelegramBotToken,
		PollTimeout: cfg.TelegramPollTimeout,
		TurnTimeout: turnTimeout,
		Reconnect: &resilience.ReconnectConfig{
			MaxAttempts: cfg.ReconnectMaxAttempts,
			Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
			Multiplier:  2.0,
			MaxBackoff:  30 * time.Second,
		},
	}, logger)

	checks := map[string]observability.HealthCheckFunc{
		"state_store": store.Ping,
		"telegram":    bot.Check,
	}

	// Create HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	if cfg.WebSocketEnabled {
		mux.HandleFunc("/ws", websocket.Handle(engine, logger))
		logger.Info().Msg("WebSocket conversations enabled at /ws")
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if cfg.GRPCHealthEnabled {
		grpcHealth := observability.NewGRPCHealth(checks, healthCheckInterval, logger)
		g.Go(func() error {
			return grpcHealth.Serve(gctx, ":"+cfg.GRPCHealthPort)
		})
	}

	g.Go(func() error {
		if err := bot.Connect(gctx); err != nil {
			return err
		}
		return bot.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return err
	}

	logger.Info().Msg("Server exited gracefully")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (dialogue.Store, error) {
	if cfg.StateBackend != config.StateBackendRedis {
		logger.Info().Msg("Keeping dialogue state in memory")
		return dialogue.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := dialogue.NewRedisStore(connectCtx, dialogue.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisPrefix,
		TTL:      cfg.StateTTL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open redis state store: %w", err)
	}

	logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.StateTTL).Msg("Keeping dialogue state in Redis")
	return store, nil
}

// newSynthesizer builds the Google client, guarded by a circuit breaker
// unless CIRCUIT_BREAKER_MAX_FAILURES is 0
func newSynthesizer(cfg *config.Config, logger zerolog.Logger) tts.Synthesizer {
	client := tts.NewGoogleClient(
		cfg.TTSAPIKey,
		tts.WithEndpoint(cfg.TTSEndpoint),
		tts.WithTimeout(cfg.TTSRequestTimeout()),
	)
	if cfg.CircuitBreakerMaxFailures <= 0 {
		return client
	}

	breaker := resilience.NewCircuitBreaker(
		"tts",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		logger.Warn().Str("service", name).Str("state", state.String()).Msg("Circuit breaker state changed")
	})
	observability.UpdateCircuitBreakerState(breaker.Name(), int(resilience.StateClosed))

	failureRate := func() float64 {
		_, _, _, rate := breaker.GetStats()
		return rate
	}
	if err := observability.RegisterCircuitBreakerFailureRate(prometheus.DefaultRegisterer, breaker.Name(), failureRate); err != nil {
		logger.Warn().Err(err).Msg("Failed to register circuit breaker failure rate")
	}

	return tts.NewGuardedSynthesizer(client, breaker)
}
