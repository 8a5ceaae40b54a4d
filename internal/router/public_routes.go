package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/handler"
)

// RegisterOTP mounts contact verification. Both endpoints share the
// passcode limiter so guessing and flooding draw from the same bucket.
func RegisterOTP(e *echo.Echo, h *handler.OTPHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/otp", limiter)
	g.POST("/send", h.Send)
	g.POST("/verify", h.Verify)
}

// RegisterPublic registers the checkout helpers that need no account: the
// refreshment menu and the mock payment endpoints.
func RegisterPublic(e *echo.Echo, p *handler.PaymentHandler) {
	e.GET("/api/refreshments", handler.Refreshments)
	e.POST("/api/payment/process", p.Process)
	e.GET("/api/payment/upi-qr", p.UPIQR)
}
