package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorcrm-backend/internal/cron"
	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/metrics"
	"github.com/angelmondragon/vendorcrm-backend/pkg/migrate"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
	"github.com/angelmondragon/vendorcrm-backend/pkg/redis"
)

const (
	serviceKind   = "cron-worker"
	lockKeyFormat = "crm:cron:lock:%s"
)

func main() {
	once := flag.Bool("once", false, "run every housekeeping job a single time and exit")
	only := flag.String("job", "", "comma separated job names to run instead of all of them")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})

	if err := run(ctx, cfg, logg, *once, splitJobs(*only)); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool, only []string) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		return err
	}

	notificationJob, err := cron.NewNotificationCleanupJob(notifications.NewRepository(dbClient.DB()), cfg.Cron.NotificationRetentionDays)
	if err != nil {
		return err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(outbox.NewRepository(dbClient.DB()), cfg.Cron.OutboxRetentionDays)
	if err != nil {
		return err
	}

	jobs, err := cron.NewRegistry(notificationJob, outboxJob)
	if err != nil {
		return err
	}
	if len(only) > 0 {
		if jobs, err = jobs.Only(only...); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	if once {
		logg.Info(logg.WithField(ctx, "jobs", jobs.Names()), "running housekeeping once")
		return service.RunOnce(ctx)
	}

	router := chi.NewRouter()
	router.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	if cfg.Features.MetricsOn {
		router.Handle("/metrics", metrics.Handler(reg))
	}
	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	logg.Info(logg.WithField(ctx, "interval", cfg.Cron.Interval.String()), "starting cron worker")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return service.Run(gctx)
	})
	return g.Wait()
}

func splitJobs(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
