package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/handler"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/model"
)

// RegisterBookings mounts the booking lifecycle under /api/bookings.
//
// Creation works for guests and signed-in users alike; a valid bearer token
// attaches the booking to the caller's account. Cancellation is keyed by
// booking reference and needs no token. Listing one account's bookings is
// open to that account and to administrators, deletion only to the owner.
// limiter guards creation against bursts.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/bookings")
	auth := middleware.JWTAuth(jwtSecret)

	g.POST("", h.Create, middleware.OptionalJWT(jwtSecret), limiter)
	g.GET("", h.ListAll, auth, middleware.RequireRole(model.RoleAdmin))
	g.GET("/history", h.History)
	g.GET("/user/:userId", h.ListForUser, auth)
	g.PUT("/cancel/:id", h.Cancel)
	g.DELETE("/:id", h.Delete, auth)
}

// RegisterAdmin mounts administrator reports. cache sits after the role
// check so only authorised responses are ever stored.
func RegisterAdmin(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/api/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/stats", h.Stats, cache)
}
