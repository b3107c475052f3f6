package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agendo/internal/api"
	"agendo/internal/config"
	"agendo/internal/database"
	"agendo/internal/domain"
	"agendo/internal/events"
	"agendo/internal/google"
	"agendo/internal/logging"
	"agendo/internal/metrics"
	"agendo/internal/models"
	"agendo/internal/notify"
	"agendo/internal/payment"
	"agendo/internal/repository"
	"agendo/internal/service"
	"agendo/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedProfessionals(ctx, db, &logger); err != nil {
		return err
	}

	shared := initSharedState(ctx, cfg, &logger)
	gateway := initGateway(cfg, &logger)
	sheets := initGoogleSheets(ctx, cfg, &logger)
	notifier := initNotifier(cfg, &logger)

	taskWorker := worker.New(worker.RetryPolicy{}, &logger)
	taskWorker.Start(ctx)
	defer taskWorker.Stop()

	eventBus := events.NewEventBus()

	bookingService := service.NewBookingService(service.Deps{
		Store:    db,
		Shared:   shared,
		Gateway:  gateway,
		EventBus: eventBus,
		Notifier: notifier,
		Sheets:   sheets,
		Worker:   taskWorker,
		Logger:   &logger,
	})

	if cfg.Booking.Cleanup.Enabled {
		interval := time.Duration(cfg.Booking.Cleanup.IntervalMinutes) * time.Minute
		retention := time.Duration(cfg.Booking.Cleanup.RetentionHours) * time.Hour
		go bookingService.RunCleanup(ctx, interval, retention)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, db, shared, &logger)
	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// professionalSeed is one entry of configs/professionals.yaml. The file
// is the source of truth for calendars and services; bookings live only
// in the database.
type professionalSeed struct {
	models.Professional `yaml:",inline"`
	Services            []models.Service      `yaml:"services"`
	WorkingHours        []models.WorkingHours `yaml:"working_hours"`
}

func seedProfessionals(ctx context.Context, db *database.DB, logger *zerolog.Logger) error {
	seedPath := os.Getenv("PROFESSIONALS_PATH")
	if seedPath == "" {
		seedPath = "configs/professionals.yaml"
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("seed_path", seedPath).Msg("no professionals seed file, skipping")
			return nil
		}
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read professionals seed")
		return err
	}

	var seed struct {
		Professionals []professionalSeed `yaml:"professionals"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse professionals seed")
		return err
	}

	for i := range seed.Professionals {
		p := &seed.Professionals[i]
		if err := db.UpsertProfessional(ctx, &p.Professional); err != nil {
			return fmt.Errorf("seed professional %s: %w", p.ID, err)
		}
		for j := range p.Services {
			svc := &p.Services[j]
			svc.ProfessionalID = p.ID
			if err := svc.Validate(); err != nil {
				return fmt.Errorf("seed professional %s: %w", p.ID, err)
			}
			if err := db.UpsertService(ctx, svc); err != nil {
				return fmt.Errorf("seed service %s: %w", svc.ID, err)
			}
		}
		if len(p.WorkingHours) > 0 {
			if err := db.ReplaceWorkingHours(ctx, p.ID, p.WorkingHours); err != nil {
				return fmt.Errorf("seed working hours for %s: %w", p.ID, err)
			}
		}
	}

	logger.Info().Int("professionals", len(seed.Professionals)).Msg("professionals seeded")
	return nil
}

func initSharedState(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.SharedState {
	memory := repository.NewMemorySharedState()
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory shared state")
		return memory
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, falling back to memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	return repository.NewFailoverSharedState(
		repository.NewRedisSharedState(redisClient), memory, logger)
}

func initGateway(cfg *config.Config, logger *zerolog.Logger) payment.Gateway {
	if !cfg.Payment.Enabled {
		return nil
	}
	logger.Info().Str("base_url", cfg.Payment.BaseURL).Msg("payment gateway enabled")
	return payment.NewClient(cfg.Payment)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.SheetsWriter {
	if cfg.Google.CredentialsFile == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" {
		return nil
	}

	bot, err := notify.NewBot(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}

	logger.Info().Msg("telegram notifier connected")
	return notify.NewTelegramNotifier(bot)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	logger.Info().Msg("API server stopped")
	return nil
}
