package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorcrm-backend/api/controllers"
	"github.com/angelmondragon/vendorcrm-backend/api/routes"
	"github.com/angelmondragon/vendorcrm-backend/internal/auth"
	"github.com/angelmondragon/vendorcrm-backend/internal/demands"
	"github.com/angelmondragon/vendorcrm-backend/internal/media"
	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
	"github.com/angelmondragon/vendorcrm-backend/internal/orders"
	product "github.com/angelmondragon/vendorcrm-backend/internal/products"
	"github.com/angelmondragon/vendorcrm-backend/internal/purchases"
	"github.com/angelmondragon/vendorcrm-backend/internal/realtime"
	"github.com/angelmondragon/vendorcrm-backend/internal/stock"
	"github.com/angelmondragon/vendorcrm-backend/internal/users"
	"github.com/angelmondragon/vendorcrm-backend/internal/vendors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth/session"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/metrics"
	"github.com/angelmondragon/vendorcrm-backend/pkg/migrate"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
	"github.com/angelmondragon/vendorcrm-backend/pkg/redis"
	"github.com/angelmondragon/vendorcrm-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	uploads, err := media.NewStore(cfg.Uploads, logg)
	if err != nil {
		return err
	}

	hub, err := realtime.NewHub(redisClient, cfg.Realtime.Channel, logg)
	if err != nil {
		return err
	}

	services, err := buildServices(cfg, logg, dbClient, sessionManager)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Sessions: sessionManager,
		Redis:    redisClient,
		Uploads:  uploads,
		Events:   hub,
		Metrics:  metrics.NewHTTPMetrics(registry),
		Gatherer: registry,
		Readiness: []controllers.Dependency{
			{Name: "postgres", Pinger: dbClient},
			{Name: "redis", Pinger: redisClient},
		},
		Services: *services,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(logCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessions *session.Manager) (*routes.Services, error) {
	conn := dbClient.DB()
	hasher := security.NewHasher(cfg.Password)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	userRepo := users.NewRepository(conn)
	vendorRepo := vendors.NewRepository(conn)
	productRepo := product.NewRepository(conn)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		VendorRepo:     vendorRepo,
		Passwords:      hasher,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}

	userService, err := users.NewService(userRepo, hasher, cfg.Password.TempLength, logg, sessions)
	if err != nil {
		return nil, err
	}
	vendorService, err := vendors.NewService(vendorRepo, hasher, cfg.Password.TempLength, logg, sessions)
	if err != nil {
		return nil, err
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(conn), emitter)
	if err != nil {
		return nil, err
	}

	productService, err := product.NewService(productRepo, dbClient, emitter, notificationService, logg)
	if err != nil {
		return nil, err
	}

	orderService, err := orders.NewService(
		orders.NewRepository(conn),
		dbClient,
		emitter,
		stock.NewReconciler(logg),
		productService,
		notificationService,
		logg,
	)
	if err != nil {
		return nil, err
	}

	purchaseService, err := purchases.NewService(purchases.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	demandService, err := demands.NewService(demands.NewRepository(conn), productRepo, dbClient, emitter, notificationService, logg)
	if err != nil {
		return nil, err
	}

	return &routes.Services{
		Auth:          authService,
		Users:         userService,
		Vendors:       vendorService,
		Products:      productService,
		Orders:        orderService,
		Purchases:     purchaseService,
		Demands:       demandService,
		Notifications: notificationService,
	}, nil
}
