package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	httpapi "github.com/i474232898/srf-weather/internal/api/http"
	"github.com/i474232898/srf-weather/internal/auth"
	"github.com/i474232898/srf-weather/internal/config"
	"github.com/i474232898/srf-weather/internal/entity"
	"github.com/i474232898/srf-weather/internal/logger"
	"github.com/i474232898/srf-weather/internal/metrics"
	"github.com/i474232898/srf-weather/internal/publish"
	"github.com/i474232898/srf-weather/internal/scheduler"
	"github.com/i474232898/srf-weather/internal/store"
	"github.com/i474232898/srf-weather/internal/weather"
	"github.com/i474232898/srf-weather/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("development", "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)

	loc, err := cfg.ResolveLocation()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve location")
	}
	log = log.With().Str("location_id", loc.ID()).Logger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// Shared HTTP client for the token and forecast endpoints.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	seed := auth.CredentialState{ConsumerKey: cfg.ConsumerKey, ConsumerSecret: cfg.ConsumerSecret}
	var credStore auth.CredentialStore = auth.NewMemoryCredentialStore(seed)
	if cfg.CredentialsFile != "" {
		credStore = auth.NewFileCredentialStore(cfg.CredentialsFile, seed)
	}
	tokens := auth.NewTokenManager(httpClient, cfg.APIURL, credStore, log, collector)

	provider := providers.NewSRFProvider(httpClient, cfg.APIURL, cfg.ForecastRatePerMinute, log, collector).
		WithBackoff(providers.BackoffConfig{
			MaxRetries:      cfg.ForecastMaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})

	history, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot store")
	}
	defer closeStore()

	publishers := []entity.Publisher{publish.NewStorePublisher(history)}

	if cfg.MQTTEnabled() {
		mq := publish.NewMQTTPublisher(publish.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			Port:        cfg.MQTTPort,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, log)
		connectCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := mq.Connect(connectCtx); err != nil {
			// Auto-reconnect keeps trying; publishes fail until it succeeds.
			log.Warn().Err(err).Msg("mqtt broker not reachable yet")
		}
		cancel()
		defer mq.Disconnect()
		publishers = append(publishers, mq)
	}

	svc := weather.NewService(loc, tokens, provider, log, collector)
	ent := entity.New(svc, entity.Options{
		Name:        cfg.Name,
		MinInterval: cfg.UpdateIntervalMin,
		MaxInterval: cfg.UpdateIntervalMax,
		Publishers:  publishers,
		Metrics:     collector,
	}, log)

	if snap, err := history.GetLatest(loc); err == nil {
		ent.Seed(snap)
		log.Info().Time("fetched_at", snap.FetchedAt).Msg("restored last stored snapshot")
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn().Err(err).Msg("failed to restore last snapshot")
	}

	retention := scheduler.NewRetention(history, cfg.StorePruneInterval, cfg.StoreMaxAge, log)
	if err := retention.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start retention job")
	}
	defer retention.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ent.Attach(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to attach weather entity")
	}
	defer ent.Detach()

	app := newApp(log)
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Entity:  ent,
		History: history,
		Metrics: metrics.Handler(reg),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting http server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

func openStore(cfg *config.AppConfig) (weather.Store, func(), error) {
	if cfg.StoreDriver == config.StoreSQLite {
		s, err := store.OpenSQLite(cfg.SQLitePath, cfg.StoreMaxHistory)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {}, nil
}

func newApp(log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "srf-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New(fiberlogger.Config{Output: os.Stdout}))
	app.Use(recover.New())
	return app
}
