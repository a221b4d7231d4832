package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorcrm-backend/internal/realtime"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/metrics"
	"github.com/angelmondragon/vendorcrm-backend/pkg/migrate"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/delivery"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/registry"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pubsub"
	"github.com/angelmondragon/vendorcrm-backend/pkg/redis"
	"github.com/angelmondragon/vendorcrm-backend/pkg/whatsapp"
)

const (
	serviceKind      = "outbox-dispatcher"
	deliveryGuardTTL = 7 * 24 * time.Hour
)

func main() {
	requeue := flag.String("requeue", "", "move a dead-lettered event (id or \"all\") back into the outbox and exit")
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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	if *requeue != "" {
		if err := requeueDeadLetters(context.Background(), outbox.NewDLQRepository(dbClient.DB()), *requeue, logg); err != nil {
			logg.Error(context.Background(), "requeue failed", err)
			os.Exit(1)
		}
		return
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	publisher, err := realtime.NewPublisher(redisClient, cfg.Realtime.Channel)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime publisher", err)
		os.Exit(1)
	}
	sinks := []sink{realtimeSink{publisher: publisher}}

	if cfg.WhatsApp.Enabled() {
		waClient, err := whatsapp.NewClient(cfg.WhatsApp)
		if err != nil {
			logg.Error(context.Background(), "failed to create whatsapp client", err)
			os.Exit(1)
		}
		sinks = append(sinks, whatsappSink{client: waClient})
	} else {
		logg.Warn(context.Background(), "whatsapp not configured, demand messages will only stream in-app")
	}

	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		sinks = append(sinks, domainTopicSink{client: psClient})
	}

	guard, err := delivery.NewGuard(redisClient, deliveryGuardTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery guard", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, err := NewService(ServiceParams{
		Config:        cfg.Outbox,
		Logger:        logg,
		DB:            dbClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Registry:      registry.NewEventRegistry(),
		Sinks:         sinks,
		Guard:         guard,
		Metrics:       metrics.NewDispatcherMetrics(reg),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox dispatcher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"sinks":       len(sinks),
	})

	router := chi.NewRouter()
	router.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	if cfg.Features.MetricsOn {
		router.Handle("/metrics", metrics.Handler(reg))
	}
	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	logg.Info(ctx, "starting outbox dispatcher")
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
		if err := service.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "outbox dispatcher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox dispatcher shutting down gracefully")
}

func requeueDeadLetters(ctx context.Context, dlq *outbox.DLQRepository, target string, logg *logger.Logger) error {
	if target == "all" {
		moved, err := dlq.RequeueAll(ctx)
		logg.Info(logg.WithField(ctx, "requeued", moved), "dead letters requeued")
		return err
	}
	id, err := uuid.Parse(target)
	if err != nil {
		return fmt.Errorf("-requeue wants an event id or \"all\": %w", err)
	}
	if err := dlq.Requeue(ctx, id); err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "event_id", id.String()), "dead letter requeued")
	return nil
}
