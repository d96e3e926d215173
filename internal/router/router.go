package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/model"
)

const (
	uploadMaxDuration = 10 * time.Minute
	uploadIdleTimeout = 60 * time.Second
)

type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Product *handler.ProductHandler
	Audit   *handler.AuditHandler
	Upload  *handler.UploadHandler
	Health  *handler.HealthHandler
}

func New(cfg *config.Config, auth *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.RealIP(cfg.TrustedProxies))
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Check)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", m.Handler())
	}

	r.With(middleware.TransferTimeout(uploadMaxDuration, uploadIdleTimeout)).Get("/uploads/*", h.Upload.Serve)

	admin := auth.RequireRoles(model.RoleAdmin)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(a chi.Router) {
			a.Post("/logout", h.Auth.Logout)
			a.With(auth.Session, auth.RequireAuth).Get("/me", h.Auth.Me)
			a.Get("/google/login", h.Auth.GoogleLogin)
			a.Get("/google/callback", h.Auth.GoogleCallback)
		})

		api.Route("/users", func(u chi.Router) {
			// Registration is public; the session is only read to let an
			// admin pick the new account's role.
			u.With(auth.OptionalSession).Post("/register", h.Auth.Register)
			u.Post("/login", h.Auth.Login)

			u.With(auth.Session, admin).Get("/", h.User.List)
			u.With(auth.Session, admin).Get("/{id}", h.User.Get)
			u.With(auth.Session, auth.RequireSelfOrRoles("id", model.RoleAdmin)).Patch("/{id}", h.User.Update)
			u.With(auth.Session, admin).Delete("/{id}", h.User.Delete)
		})

		api.Route("/products", func(p chi.Router) {
			p.Get("/", h.Product.List)
			p.With(auth.Session).Get("/{id}", h.Product.Get)
			p.With(auth.Session, admin).Post("/", h.Product.Create)
			p.With(auth.Session, admin).Patch("/{id}", h.Product.Update)
			p.With(auth.Session, admin).Delete("/{id}", h.Product.Delete)
		})

		api.With(auth.Session, admin).Get("/audit", h.Audit.List)
	})

	return r
}
