package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bissquit/finance-admin/internal/apiclient"
	"github.com/bissquit/finance-admin/internal/auth"
	"github.com/bissquit/finance-admin/internal/dashboard"
	"github.com/bissquit/finance-admin/internal/guard"
	"github.com/bissquit/finance-admin/internal/identity"
	"github.com/bissquit/finance-admin/internal/pkg/httputil"
	"github.com/bissquit/finance-admin/internal/session"
	"github.com/bissquit/finance-admin/internal/settings"
	"github.com/bissquit/finance-admin/internal/transactions"
	"github.com/bissquit/finance-admin/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// handlerGrace lets a slow upstream call hit its own timeout before the
// request-wide one fires.
const handlerGrace = 5 * time.Second

func (a *App) setupRouter(ctx context.Context) (http.Handler, error) {
	cfg := a.config

	revocations, err := a.revocationStore(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(session.Config{
		Secret:       cfg.Session.Secret,
		MaxAge:       cfg.Session.MaxAge,
		UpdateAge:    cfg.Session.UpdateAge,
		CookieSecure: cfg.Session.CookieSecure,
		CookieDomain: cfg.Session.CookieDomain,
	}, revocations)
	if err != nil {
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	settingsRepo, err := a.settingsRepository(ctx)
	if err != nil {
		return nil, err
	}

	api, err := apiclient.New(apiclient.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout},
		apiclient.WithTokenSource(session.TokenSource()),
		apiclient.WithSessionExpiredHook(sessions.ExpireCurrent),
	)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	a.apiBase = api.BaseURL()

	authenticator := auth.NewAuthenticator(auth.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout})
	loginLimiter := httputil.NewRateLimiter(cfg.Login.RateLimit, cfg.Login.Burst)
	txService := transactions.NewService(api)

	pages := []interface{ RegisterRoutes(chi.Router) }{
		dashboard.NewHandler(dashboard.NewService(api), txService, cfg.Views.DashboardRefresh),
		users.NewHandler(users.NewService(api), cfg.Views.UsersRefresh),
		transactions.NewHandler(txService, cfg.Views.TransactionsRefresh),
		settings.NewHandler(settings.NewService(settingsRepo)),
	}

	r := chi.NewRouter()

	// outermost so the duration covers every other middleware
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.API.Timeout + handlerGrace))
	r.Use(httputil.SecurityHeaders)

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Get("/version", a.buildInfo)
	r.Get("/api/openapi.yaml", serveSpec)
	r.Get("/docs", serveDocs)

	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		identity.NewHandler(authenticator, sessions, loginLimiter).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(guard.Middleware(guard.DefaultConfig()))

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				httputil.Redirect(w, r, identity.HomePath)
			})
			for _, p := range pages {
				p.RegisterRoutes(r)
			}
		})
	})

	return r, nil
}
