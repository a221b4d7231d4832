package routes

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vendorcrm-backend/api/controllers"
	"github.com/angelmondragon/vendorcrm-backend/api/middleware"
	"github.com/angelmondragon/vendorcrm-backend/internal/auth"
	"github.com/angelmondragon/vendorcrm-backend/internal/demands"
	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
	"github.com/angelmondragon/vendorcrm-backend/internal/orders"
	product "github.com/angelmondragon/vendorcrm-backend/internal/products"
	"github.com/angelmondragon/vendorcrm-backend/internal/purchases"
	"github.com/angelmondragon/vendorcrm-backend/internal/users"
	"github.com/angelmondragon/vendorcrm-backend/internal/vendors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth/session"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/vendorcrm-backend/pkg/redis"
)

// UploadStore is the disk store behind image uploads and /uploads.
type UploadStore interface {
	controllers.ImageStore
	Root() string
	PublicPath() string
}

type Services struct {
	Auth          auth.Service
	Users         users.Service
	Vendors       vendors.Service
	Products      product.Service
	Orders        orders.Service
	Purchases     purchases.Service
	Demands       demands.Service
	Notifications notifications.Service
}

type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Sessions  session.AccessSessionChecker
	Redis     *pkgredis.Client
	Uploads   UploadStore
	Events    controllers.EventSubscriber
	Metrics   *metrics.HTTPMetrics
	Gatherer  prometheus.Gatherer
	Readiness []controllers.Dependency
	Services
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	svc := deps.Services

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.SecureHeaders(cfg.App, logg),
		middleware.CORS(cfg.CORS),
		deps.Metrics.Middleware,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness...))
	})
	if cfg.Features.MetricsOn && deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	if deps.Uploads != nil {
		prefix := strings.TrimRight(deps.Uploads.PublicPath(), "/")
		files := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(deps.Uploads.Root())))
		r.Handle(prefix+"/*", files)
	}

	loginPolicy := middleware.LoginRateLimitPolicy("login", cfg.RateLimit)
	vendorLoginPolicy := middleware.LoginRateLimitPolicy("vendor-login", cfg.RateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.App.RequestTimeout))
			r.With(loginLimit(loginPolicy, deps)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
			r.With(loginLimit(vendorLoginPolicy, deps)).Post("/vendor-login", controllers.AuthVendorLogin(svc.Auth, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
				r.Post("/logout", controllers.AuthLogout(svc.Auth, logg))
				r.Get("/me", controllers.AuthMe(svc.Auth, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.APIRateLimit(cfg.RateLimit.APIRequestsPerMin, logg))

			// The event stream outlives the request timeout.
			r.Get("/events", controllers.Events(deps.Events, cfg.Realtime.HeartbeatInterval, logg))

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(cfg.App.RequestTimeout))
				mountOrders(r, deps)
				mountProducts(r, deps)
				mountVendors(r, deps)
				mountUsers(r, deps)
				mountDemands(r, deps)

				r.With(middleware.RequireAdmin(logg)).Get("/purchases", controllers.ListPurchases(svc.Purchases, logg))

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
					r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
					r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
				})
			})
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }

func loginLimit(policy middleware.AuthRateLimitPolicy, deps Deps) func(http.Handler) http.Handler {
	if deps.Redis == nil {
		return passthrough
	}
	return middleware.AuthRateLimit(policy, deps.Redis, deps.Logger)
}

func idempotent(deps Deps, critical bool) func(http.Handler) http.Handler {
	if deps.Redis == nil {
		return passthrough
	}
	ttl := middleware.DefaultIdempotencyTTL
	if critical {
		ttl = middleware.CriticalIdempotencyTTL
	}
	return middleware.Idempotency(deps.Redis, ttl, deps.Logger)
}

func mountOrders(r chi.Router, deps Deps) {
	svc, logg := deps.Orders, deps.Logger
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", controllers.ListOrders(svc, logg))
		r.With(idempotent(deps, false)).Post("/", controllers.CreateOrder(svc, logg))
		r.Get("/vendor/{vendorId}", controllers.ListVendorOrders(svc, logg))

		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", controllers.GetOrder(svc, logg))
			r.Put("/", controllers.UpdateOrder(svc, logg))
			r.Delete("/", controllers.DeleteOrder(svc, logg))
			r.Post("/confirm-item", controllers.ConfirmOrderItem(svc, logg))
			r.With(middleware.RequireVendor(logg), idempotent(deps, true)).
				Post("/items/{itemIndex}/transfer", controllers.TransferOrderItem(svc, logg))
			r.Post("/image", controllers.UploadOrderImage(svc, deps.Uploads, false, logg))
			r.Post("/item/{itemIndex}/image", controllers.UploadOrderImage(svc, deps.Uploads, true, logg))
		})
	})
}

func mountProducts(r chi.Router, deps Deps) {
	svc, logg := deps.Products, deps.Logger
	r.Route("/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(svc, logg))
		r.With(middleware.RequireAdmin(logg)).Get("/low-stock", controllers.LowStockProducts(svc, logg))
		r.Get("/{productId}", controllers.GetProduct(svc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Post("/", controllers.CreateProduct(svc, logg))
			r.Put("/{productId}", controllers.UpdateProduct(svc, logg))
			r.Delete("/{productId}", controllers.DeleteProduct(svc, logg))
			r.Post("/{productId}/image", controllers.UploadProductImage(svc, deps.Uploads, logg))
			r.Get("/{productId}/purchases", controllers.ListProductPurchases(deps.Purchases, logg))
		})
	})
}

func mountVendors(r chi.Router, deps Deps) {
	svc, logg := deps.Vendors, deps.Logger
	r.Route("/vendors", func(r chi.Router) {
		r.Route("/me", func(r chi.Router) {
			r.Use(middleware.RequireVendor(logg))
			r.Get("/", controllers.GetVendorSelf(svc, logg))
			r.Put("/", controllers.UpdateVendorSelf(svc, logg))
			r.Post("/presence", controllers.VendorPresence(svc, logg))
			r.Post("/orders-read", controllers.VendorOrdersRead(svc, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Get("/", controllers.ListVendors(svc, logg))
			r.With(idempotent(deps, false)).Post("/", controllers.CreateVendor(svc, logg))
			r.Get("/{vendorId}", controllers.GetVendor(svc, logg))
			r.Put("/{vendorId}", controllers.UpdateVendor(svc, logg))
			r.Delete("/{vendorId}", controllers.DeleteVendor(svc, logg))
			r.Post("/{vendorId}/reset-password", controllers.ResetVendorPassword(svc, logg))
		})
	})
}

func mountUsers(r chi.Router, deps Deps) {
	svc, logg := deps.Users, deps.Logger
	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Get("/", controllers.ListUsers(svc, logg))
		r.Post("/", controllers.CreateUser(svc, logg))
		r.Get("/{userId}", controllers.GetUser(svc, logg))
		r.Put("/{userId}", controllers.UpdateUser(svc, logg))
		r.Delete("/{userId}", controllers.DeleteUser(svc, logg))
		r.Post("/{userId}/reset-password", controllers.ResetUserPassword(svc, logg))
	})
}

func mountDemands(r chi.Router, deps Deps) {
	svc, logg := deps.Demands, deps.Logger
	r.Route("/demands", func(r chi.Router) {
		r.With(middleware.RequireAdminOrClient(logg)).Get("/", controllers.ListDemands(svc, logg))
		r.With(middleware.RequireClient(logg), idempotent(deps, false)).Post("/", controllers.CreateDemand(svc, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Put("/{demandId}/status", controllers.UpdateDemandStatus(svc, logg))
			r.With(idempotent(deps, false)).Post("/report", controllers.DemandReport(svc, logg))
		})
	})
}
