package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"sketch3d/internal/domain"
	"sketch3d/internal/generation"
	"sketch3d/internal/http/handlers"
	httpapi "sketch3d/internal/http/httpapi"
	"sketch3d/internal/infra"
	"sketch3d/internal/infra/geoip"
	"sketch3d/internal/metrics"
	"sketch3d/internal/providers/modelslab"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if !cfg.HasModelsLabKey() {
		logger.Warn().Msg("MODELSLAB_API_KEY is not set; generation requests will be rejected by ModelsLab")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := infra.InitTelemetry(ctx, infra.TelemetryOptions{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  "sketch3d-api",
		Environment:  cfg.AppEnv,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init telemetry")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip disabled")
	}
	defer resolver.Close()

	collector := metrics.NewCollector("sketch3d")

	client := modelslab.NewClient(modelslab.Options{
		APIKey:         cfg.ModelsLabAPIKey,
		BaseURL:        cfg.ModelsLabBaseURL,
		RequestTimeout: cfg.ModelsLabRequestTimeout,
		Logger:         &logger,
	})
	orchestrator := generation.New(generation.Options{
		Remote:      client,
		Logger:      &logger,
		TextPolicy:  generation.PollPolicy{Interval: cfg.TextPollInterval, MaxAttempts: cfg.TextPollMaxAttempts},
		ImagePolicy: generation.PollPolicy{Interval: cfg.ImagePollInterval, MaxAttempts: cfg.ImagePollMaxAttempts},
		Recorder:    collector,
	})

	ceiling := orchestrator.Policy(domain.RequestKindText).Ceiling()
	if c := orchestrator.Policy(domain.RequestKindImage).Ceiling(); c > ceiling {
		ceiling = c
	}
	if !cfg.WriteTimeoutCovers(ceiling) {
		logger.Warn().
			Dur("poll_ceiling", ceiling).
			Dur("write_timeout", cfg.HTTPWriteTimeout).
			Msg("HTTP_WRITE_TIMEOUT_SECONDS does not exceed the longest poll ceiling; slow jobs will be cut without a response")
	}

	app := &handlers.App{
		Generator:          orchestrator,
		Logger:             &logger,
		CancelOnDisconnect: cfg.CancelOnDisconnect,
		HasCredentials:     client.HasCredentials(),
	}
	router := httpapi.NewRouter(ctx, app, httpapi.Options{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  resolver.Lookup(),
		RateLimit:      cfg.RateLimitPerMin,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Metrics:        collector,
		MetricsHandler: collector.Handler(),
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Dur("poll_ceiling", ceiling).
			Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
		return shutdownTracing(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
