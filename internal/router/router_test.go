package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/handler"
	"github.com/iliyamo/movie-booking/internal/logging"
	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/service"
	"github.com/iliyamo/movie-booking/internal/utils"
)

const secret = "router-secret"

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }

// stubBookings answers the admin list views. Any other call panics through
// the nil embedded interface, which no route in these tests should reach.
type stubBookings struct {
	handler.BookingService
}

func (stubBookings) ListAllBookings(_ context.Context, p model.Page) (service.PageResult[model.BookingWithAccount], error) {
	return service.PageResult[model.BookingWithAccount]{Items: []model.BookingWithAccount{}, Limit: p.Limit, Offset: p.Offset}, nil
}

func (stubBookings) Stats(context.Context) (model.BookingStats, error) {
	return model.BookingStats{}, nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = handler.NewValidator()
	log := logging.Discard()
	bookings := handler.NewBookingHandler(stubBookings{}, log)

	RegisterRoutes(e, map[string]handler.Pinger{})
	RegisterBookings(e, bookings, secret, noop)
	RegisterAdmin(e, bookings, secret, noop)
	RegisterPublic(e, handler.NewPaymentHandler("shop@upi", "Shop", 64, log))
	return e
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutesRegistered(t *testing.T) {
	e := newEcho()
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /readyz",
		"POST /api/bookings",
		"GET /api/bookings",
		"GET /api/bookings/history",
		"GET /api/bookings/user/:userId",
		"PUT /api/bookings/cancel/:id",
		"DELETE /api/bookings/:id",
		"GET /api/admin/stats",
		"GET /api/refreshments",
		"POST /api/payment/process",
		"GET /api/payment/upi-qr",
	} {
		assert.True(t, have[want], want)
	}
}

func TestProtectedRoutes(t *testing.T) {
	e := newEcho()

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/refreshments", "").Code)

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/api/bookings", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodDelete, "/api/bookings/MB1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/api/admin/stats", "").Code)

	user, err := utils.NewAccessToken(secret, 7, model.RoleUser, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/api/bookings", user.Token).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/api/admin/stats", user.Token).Code)
	// another account's bookings
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/api/bookings/user/8", user.Token).Code)

	// a malformed bearer on an optional route is still rejected
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/api/bookings", "not-a-jwt").Code)
}

func TestAdminReachesBookingViews(t *testing.T) {
	e := newEcho()

	admin, err := utils.NewAccessToken(secret, 1, model.RoleAdmin, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/bookings", admin.Token).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/admin/stats", admin.Token).Code)
}
