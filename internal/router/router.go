package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing

	"github.com/tablebook/tablebook/internal/handler"
	"github.com/tablebook/tablebook/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance.  Currently it exposes only a health
// check, used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints.  Login and logout live
// under /v1/auth and require no token; /v1/me is protected so callers
// can only inspect and edit a session they hold a token for.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.GET("/me", a.Me)
	me.PATCH("/me", a.UpdateMe)
}

// RegisterReservations registers the reservation endpoints.  Reads and
// the sample-data refresh are open; mutations require a session token.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string) {
	e.GET("/v1/reservations", r.List)
	e.GET("/v1/reservations/:id", r.Get)
	e.POST("/v1/reservations/refresh", r.Refresh)

	mut := e.Group("/v1/reservations")
	mut.Use(middleware.JWTAuth(jwtSecret))
	mut.POST("", r.Create)
	mut.PATCH("/:id", r.Update)
	mut.DELETE("/:id", r.Delete)
}
