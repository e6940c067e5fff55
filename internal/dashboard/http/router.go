package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/service"
	"github.com/parlourtech/whopdash/internal/dashboard/store"
	"github.com/parlourtech/whopdash/pkg/httpx"
	"github.com/parlourtech/whopdash/pkg/slogx"

	_ "github.com/parlourtech/whopdash/api/dashboard" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	dashboardURL string

	store               store.Store
	ResolverService     *service.ResolverService
	HandshakeService    *service.HandshakeService
	SessionService      *service.SessionService
	InstallationService *service.InstallationService
	MetricsService      *service.MetricsService
}

func NewRouter(
	buildVersion, dashboardURL string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		dashboardURL: dashboardURL,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth()
	r.registerSession()
	r.registerMetrics()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Whop Dashboard Service API
//	@version		0.1.0
//	@description	Tenant identity resolution, installation handshake, and session management
//	@description	for the analytics dashboard embedded in the Whop platform iframe.
//
//	@contact.name				Parlour Tech
//	@contact.url				https://github.com/parlourtech/whopdash
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session credential. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth() {
	beginHandler := &OAuthBeginHandler{Handshake: r.HandshakeService}
	callbackHandler := &OAuthCallbackHandler{
		Handshake:    r.HandshakeService,
		Sessions:     r.SessionService,
		DashboardURL: r.dashboardURL,
	}

	// GET /oauth/begin - moderate limit; every unauthenticated iframe load hits it
	r.Mux.Handle("GET /v1/oauth/begin",
		httpx.Chain(beginHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /oauth/callback - strict limit; one per handshake is plenty
	r.Mux.Handle("GET /v1/oauth/callback",
		httpx.Chain(callbackHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSession() {
	issueHandler := &SessionIssueHandler{
		Resolver:      r.ResolverService,
		Installations: r.InstallationService,
		Sessions:      r.SessionService,
	}
	refreshHandler := &SessionRefreshHandler{Sessions: r.SessionService}

	// POST /session - rate limited by IP to slow tenant enumeration
	r.Mux.Handle("POST /v1/session",
		httpx.Chain(issueHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/session/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /session - authenticated introspection
	r.Mux.Handle("GET /v1/session",
		httpx.Chain(&SessionInfoHandler{},
			SessionMiddleware(r.SessionService),
			httpx.RateLimitByTenant(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerMetrics() {
	listHandler := &MetricsListHandler{Metrics: r.MetricsService}
	syncHandler := &MetricsSyncHandler{Metrics: r.MetricsService}

	r.Mux.Handle("GET /v1/metrics",
		httpx.Chain(listHandler,
			SessionMiddleware(r.SessionService),
			httpx.RateLimitByTenant(httpx.LenientLimit),
		),
	)

	// Sync hits the platform API; keep it tight per tenant
	r.Mux.Handle("POST /v1/metrics/sync",
		httpx.Chain(syncHandler,
			SessionMiddleware(r.SessionService),
			httpx.RateLimitByTenant(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
