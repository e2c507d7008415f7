// Package httpapi is the REST surface of the storefront: auth, products
// and orders on a chi router, plus health and metrics endpoints.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/internal/catalog"
	"github.com/MrEthical07/storefront/internal/orders"
	"github.com/MrEthical07/storefront/internal/validate"
	promexport "github.com/MrEthical07/storefront/metrics/export/prometheus"
	authmw "github.com/MrEthical07/storefront/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Config struct {
	BodyLimit   int64
	CORSOrigins []string
	// RateLimit requests per RateLimitWindow per client IP. Zero disables.
	RateLimit       int
	RateLimitWindow time.Duration
	// UploadDir is served under /uploads/. Empty disables the route.
	UploadDir string
	// TLS enables the HSTS header.
	TLS bool
	// ValidationMode applies to every bearer route except change-password,
	// which is always strict.
	ValidationMode storefront.ValidationMode
}

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Engine  *storefront.Engine
	Catalog *catalog.Service
	Orders  *orders.Service
	Log     *zap.Logger
	// Registry receives the HTTP and engine collectors. Nil creates a
	// private registry.
	Registry *prometheus.Registry
	Ready    []ReadyCheck
}

type API struct {
	cfg      Config
	engine   *storefront.Engine
	catalog  *catalog.Service
	orders   *orders.Service
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *httpMetrics
	ready    []ReadyCheck
	validate *validator.Validate
	started  time.Time
}

func New(cfg Config, deps Deps) *API {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 10 << 20
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	reg.MustRegister(promexport.NewCollector(deps.Engine))

	return &API{
		cfg:      cfg,
		engine:   deps.Engine,
		catalog:  deps.Catalog,
		orders:   deps.Orders,
		log:      log.Named("http"),
		registry: reg,
		metrics:  newHTTPMetrics(reg),
		ready:    deps.Ready,
		validate: validate.New(),
		started:  time.Now(),
	}
}

// Handler builds the router.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID, requestIDHeader)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(a.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(a.metrics.instrument)
	r.Use(securityHeaders(a.cfg.TLS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}))
	if a.cfg.RateLimit > 0 {
		r.Use(httprate.Limit(a.cfg.RateLimit, a.cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			}),
		))
	}
	r.Use(bodyLimit(a.cfg.BodyLimit))
	r.Use(clientContext)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", a.root)
	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	bearer := authmw.RequireJWTOnly(a.engine)
	if a.cfg.ValidationMode == storefront.ModeStrict {
		bearer = authmw.RequireStrict(a.engine)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", a.register)
		r.Get("/verify-email/{token}", a.verifyEmail)
		r.Post("/resend-verification", a.resendVerification)
		r.Post("/login", a.login)
		r.Post("/refresh", a.refresh)
		r.Post("/logout", a.logout)
		r.Post("/forgot-password", a.forgotPassword)
		r.Post("/reset-password/{token}", a.resetPassword)
		r.With(authmw.RequireStrict(a.engine)).Post("/change-password", a.changePassword)

		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Post("/logout-all", a.logoutAll)
			r.Get("/sessions", a.listSessions)
			r.Delete("/sessions/{id}", a.revokeSession)
			r.Post("/2fa/setup", a.setupTOTP)
			r.Post("/2fa/verify", a.verifyTOTP)
			r.Post("/2fa/disable", a.disableTOTP)
			r.Get("/profile", a.profile)
			r.Get("/login-history", a.loginHistory)
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", a.listProducts)
		r.Get("/{id}", a.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(bearer, authmw.RequirePermission(a.engine, storefront.PermProductsWrite))
			r.Post("/", a.createProduct)
			r.Put("/{id}", a.updateProduct)
			r.Delete("/{id}", a.deleteProduct)
		})
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(bearer)
		r.Post("/", a.createOrder)
		r.Get("/my", a.myOrders)
		r.With(authmw.RequirePermission(a.engine, storefront.PermOrdersReadAll)).Get("/", a.allOrders)
		r.Get("/{id}", a.getOrder)
		r.Put("/{id}/status", a.updateOrderStatus)
	})

	if a.cfg.UploadDir != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.cfg.UploadDir)))
		r.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				writeMessage(w, http.StatusNotFound, "Route not found")
				return
			}
			files.ServeHTTP(w, r)
		})
	}

	return r
}

// caller returns the authenticated user. Routes without a guard never
// call it.
func caller(r *http.Request) *storefront.AuthResult {
	res, _ := authmw.AuthResultFromContext(r.Context())
	return res
}

func (a *API) actor(r *http.Request) orders.Actor {
	res := caller(r)
	return orders.Actor{
		UserID:   res.UserID,
		ReadAll:  a.engine.HasPermission(res, storefront.PermOrdersReadAll),
		WriteAny: a.engine.HasPermission(res, storefront.PermOrdersWriteAny),
	}
}
