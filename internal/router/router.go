package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                             // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp" // exposes the metrics registry

	"github.com/iliyamo/watch-party/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/watch-party/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/watch-party/internal/model"      // role names
)

// RegisterRoutes registers the operational endpoints: liveness, readiness
// and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers all authentication-related routes.  Register, login,
// refresh and logout live under /v1/auth and need no session; /v1/me needs a
// valid access token of any role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes a refresh_token in the body or a Bearer token.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleClient, model.RoleAdmin))
	auth.GET("/me", a.Me)
}

// Caches bundles the per-group response caches used by public routes.
type Caches struct {
	Movies  echo.MiddlewareFunc
	Parties echo.MiddlewareFunc
}

// RegisterPublic registers unauthenticated browse endpoints.  Movie and
// party listings are cached per group; writes elsewhere invalidate the
// group.  The /v1/parties/code/:code route is registered before :id so the
// literal segment wins.
func RegisterPublic(e *echo.Echo, m *handler.MovieHandler, p *handler.PartyHandler, c Caches) {
	e.GET("/v1/movies", m.List, c.Movies)
	e.GET("/v1/movies/:id", m.Get, c.Movies)

	e.GET("/v1/parties", p.List, c.Parties)
	e.GET("/v1/parties/code/:code", p.GetByCode, c.Parties)
	e.GET("/v1/parties/:id", p.Get, c.Parties)
}
