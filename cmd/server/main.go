package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"guckelsberg/internal/access"
	"guckelsberg/internal/api"
	"guckelsberg/internal/audit"
	"guckelsberg/internal/cache"
	"guckelsberg/internal/clock"
	"guckelsberg/internal/config"
	"guckelsberg/internal/dashboard"
	"guckelsberg/internal/database"
	"guckelsberg/internal/events"
	"guckelsberg/internal/laundry"
	"guckelsberg/internal/limits"
	"guckelsberg/internal/metrics"
	"guckelsberg/internal/notify"
	"guckelsberg/internal/overrides"
	"guckelsberg/internal/reminders"
	"guckelsberg/internal/rooftop"
	"guckelsberg/internal/sheets"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env is optional; real deployments pass the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("GUCKELSBERG_CONFIG"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	readCache := cache.New(rdb, cfg.CacheTTL(), logger)

	clk := clock.Real{Location: loc}
	bus := events.NewEventBus(logger)
	guard := limits.NewGuard(limits.Config{
		Cooldown:      cfg.Cooldown(),
		HorizonDays:   cfg.Laundry.MaxDaysAhead,
		WasherMinutes: cfg.Laundry.WasherMinutesPerWeek,
		DryerMinutes:  cfg.Laundry.DryerMinutesPerWeek,
	}, clk)

	laundrySvc := laundry.NewService(db, guard, clk, bus, readCache, logger)
	err = config.WatchMachines(ctx, cfg.Laundry.MachinesFile, 30*time.Second, func(m *config.MachinesConfig, diff config.CatalogDiff) {
		if err := db.SyncMachines(ctx, m); err != nil {
			logger.Error().Err(err).Msg("failed to sync machines")
			return
		}
		laundrySvc.InvalidateMachines(ctx)
		logger.Info().
			Str("machines", m.String()).
			Strs("added", diff.Added).
			Strs("changed", diff.Changed).
			Strs("removed", diff.Removed).
			Msg("machines catalog applied")
	})
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Laundry.MachinesFile).Msg("machines catalog not loaded")
	}

	accessSvc := access.NewService(db, logger)
	if err := accessSvc.PromoteAdmins(ctx, cfg.Admins); err != nil {
		logger.Fatal().Err(err).Msg("failed to promote admins")
	}

	rooftopBookings := rooftop.NewBookings(db, clk, bus, readCache, logger)
	services := api.Services{
		Clock:     clk,
		Access:    accessSvc,
		Laundry:   laundrySvc,
		Overrides: overrides.NewService(db, clk, logger),
		Rooftop:   rooftopBookings,
		Requests:  rooftop.NewWorkflow(db, rooftopBookings, clk, bus, logger),
		Dashboard: dashboard.NewService(db, guard, clk),
	}

	var notifier *notify.Notifier
	if cfg.Telegram.BotToken != "" {
		bot, err := notify.NewBot(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		notifier = notify.NewNotifier(bot, db, cfg.Telegram.AdminChatID, logger)
		notifier.Subscribe(bus)
		go notifier.Run(ctx)
	} else {
		logger.Info().Msg("telegram notifications disabled")
	}

	if cfg.Sheets.Enabled {
		writer, err := sheets.NewWriter(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID)
		if err != nil {
			logger.Fatal().Err(err).Msg("create sheets client error")
		}
		mirror := sheets.NewMirror(writer, db, clk, cfg.Sheets.SheetName, logger)
		mirror.Subscribe(bus)
		go mirror.Run(ctx)
	}

	backup := database.NewBackupService(db, database.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      cfg.BackupInterval(),
		StoragePath:   cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	if cfg.Audit.Enabled {
		var sender audit.DocumentSender
		if notifier != nil {
			sender = notifier
		}
		auditSvc := audit.NewService(audit.Config{
			ExportDir:     cfg.Audit.ExportDir,
			RetentionDays: cfg.Audit.RetentionDays,
		}, db, db, sender, clk, logger)
		auditSvc.Start(ctx)
	}

	if cfg.Reminders.Enabled {
		if notifier == nil {
			logger.Warn().Msg("reminders enabled without a telegram bot token; skipping")
		} else {
			reminderMetrics := reminders.NewMetrics(prometheus.DefaultRegisterer, "guckelsberg")
			reminderSvc := reminders.NewService(db, notifier, clk, reminders.Config{
				Lead:     cfg.ReminderLead(),
				Interval: cfg.ReminderInterval(),
			}, reminderMetrics, logger)
			reminderSvc.Start(ctx)
		}
	}

	server := api.NewHTTPServer(api.Config{
		Address:        cfg.Server.Address,
		APIKey:         cfg.Server.APIKey,
		IdentityHeader: cfg.Server.IdentityHeader,
		RateLimit:      cfg.RateLimit.RequestsPerSecond,
		Burst:          cfg.RateLimit.Burst,
	}, services, loc, logger)
	server.Start()

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, readCache, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Monitoring.GRPCHealthPort > 0 {
		go startGRPCHealth(ctx, cfg.Monitoring.GRPCHealthPort, &logger)
	}

	logger.Info().Str("timezone", loc.String()).Msg("guckelsberg started")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api shutdown error")
	}
	logger.Info().Msg("guckelsberg stopped")
}

func startHealthServer(ctx context.Context, port int, db *database.DB, c *cache.Cache, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if err := c.Ping(ctxPing); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
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

// startGRPCHealth serves the standard grpc.health.v1 service for orchestrators that probe over gRPC.
func startGRPCHealth(ctx context.Context, port int, logger *zerolog.Logger) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error().Err(err).Msg("grpc health listen error")
		return
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()
	if err := srv.Serve(lis); err != nil {
		logger.Error().Err(err).Msg("grpc health server error")
	}
}
