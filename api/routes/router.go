package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmlink-backend/api/controllers"
	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/internal/activity"
	"github.com/angelmondragon/farmlink-backend/internal/auth"
	"github.com/angelmondragon/farmlink-backend/internal/cart"
	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/pkg/auth/session"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/redis"
)

// Services groups the domain services mounted by the router.
type Services struct {
	Auth     auth.Service
	Cart     cart.Service
	Catalog  catalog.Service
	Orders   orders.Service
	Stats    *orders.StatsService
	Activity activity.Service
}

func passthrough(next http.Handler) http.Handler { return next }

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	svc Services,
	metricsHandler http.Handler,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App),
	)

	loginLimit := passthrough
	idempotency := passthrough
	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisClient != nil {
		loginLimit = middleware.AuthRateLimit(middleware.AuthRateLimitPolicy{
			Name:       "login",
			Window:     cfg.AuthRateLimit.LoginWindow,
			IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
			EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
		}, redisClient, logg)
		idempotency = middleware.Idempotency(redisClient, logg)
		deps["redis"] = redisClient
	}
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	authenticate := middleware.Auth(cfg.JWT, sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
		r.With(authenticate).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(idempotency)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleBuyer))
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(svc.Cart, logg))
				r.Delete("/", controllers.CartClear(svc.Cart, logg))
				r.Post("/items", controllers.CartAddItem(svc.Cart, logg))
				r.Patch("/items/{itemId}", controllers.CartUpdateItem(svc.Cart, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(svc.Cart, logg))
			})
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrdersConfirm(svc.Orders, logg))
				r.Get("/", controllers.OrdersList(svc.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(svc.Orders, logg))
			})
		})

		r.Route("/farmer", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleFarmer))
			r.Get("/orders", controllers.OrdersList(svc.Orders, logg))
			r.Get("/analytics", controllers.FarmerAnalytics(svc.Stats, logg))
			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.FarmerListProducts(svc.Catalog, logg))
				r.Post("/", controllers.FarmerCreateProduct(svc.Catalog, logg))
				r.Patch("/{productId}", controllers.FarmerUpdateProduct(svc.Catalog, logg))
				r.Put("/{productId}/stock", controllers.FarmerUpdateStock(svc.Catalog, logg))
				r.Get("/{productId}/stock-movements", controllers.FarmerStockMovements(svc.Catalog, logg))
				r.Delete("/{productId}", controllers.FarmerDeleteProduct(svc.Catalog, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(idempotency)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(svc.Orders, logg))
			r.Get("/pending", controllers.AdminPendingOrders(svc.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svc.Orders, logg))
			r.Post("/{orderId}/approve", controllers.AdminApproveOrder(svc.Orders, logg))
			r.Post("/{orderId}/reject", controllers.AdminRejectOrder(svc.Orders, logg))
			r.Post("/{orderId}/complete", controllers.AdminCompleteOrder(svc.Orders, logg))
		})
		r.Get("/products/pending", controllers.AdminPendingProducts(svc.Catalog, logg))
		r.Post("/products/{productId}/approval", controllers.AdminSetProductApproval(svc.Catalog, logg))
		r.Get("/stats", controllers.AdminDashboardStats(svc.Stats, logg))
		r.Get("/activity-logs", controllers.AdminActivityLogs(svc.Activity, logg))
	})

	return r
}
