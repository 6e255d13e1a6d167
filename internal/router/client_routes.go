package router

import (
	"github.com/iliyamo/watch-party/internal/handler"
	"github.com/iliyamo/watch-party/internal/middleware"
	"github.com/iliyamo/watch-party/internal/model"
	"github.com/labstack/echo/v4"
)

// RegisterClient registers client-scoped endpoints under /v1.  All routes
// require a valid JWT and the CLIENT role.  Clients buy tickets, rate
// movies and create, join and leave watch parties.  membershipLimit is a
// per-client token bucket applied to the party mutations.
func RegisterClient(e *echo.Echo, p *handler.PartyHandler, t *handler.TicketHandler, m *handler.MovieHandler, jwtSecret string, membershipLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleClient),
	)
	g.POST("/movies/:id/tickets", t.Purchase)
	g.GET("/my-tickets", t.ListMine)
	g.PUT("/movies/:id/rating", m.Rate)

	// Membership endpoints.
	g.POST("/parties", p.Create, membershipLimit)
	g.POST("/parties/join", p.JoinByCode, membershipLimit)
	g.POST("/parties/:id/join", p.Join, membershipLimit)
	g.POST("/parties/:id/leave", p.Leave, membershipLimit)
}
