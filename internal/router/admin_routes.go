package router

import (
	"github.com/iliyamo/watch-party/internal/handler"
	"github.com/iliyamo/watch-party/internal/middleware"
	"github.com/iliyamo/watch-party/internal/model"
	"github.com/labstack/echo/v4"
)

// RegisterAdmin registers the admin console under /v1/admin.  Every route
// requires the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/parties", h.ListParties)
	g.PATCH("/parties/:id/status", h.SetPartyStatus)
	g.DELETE("/parties/:id", h.DeleteParty)
	g.GET("/reviews", h.ListReviews)
	g.DELETE("/reviews/:client_id/:movie_id", h.DeleteReview)
	g.GET("/users", h.ListUsers)
	g.GET("/analytics", h.Analytics)
}
