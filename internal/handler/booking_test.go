package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/logging"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/service"
)

type mockBookingService struct{ mock.Mock }

func (m *mockBookingService) CreateBooking(ctx context.Context, in service.CreateBookingInput) (model.Booking, error) {
	args := m.Called(in)
	return args.Get(0).(model.Booking), args.Error(1)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, ref string) (service.CancelResult, error) {
	args := m.Called(ref)
	return args.Get(0).(service.CancelResult), args.Error(1)
}

func (m *mockBookingService) DeleteBooking(ctx context.Context, ref string, requester uint64) error {
	return m.Called(ref, requester).Error(0)
}

func (m *mockBookingService) ListBookingsForAccount(ctx context.Context, id uint64, p model.Page) (service.PageResult[model.Booking], error) {
	args := m.Called(id, p)
	return args.Get(0).(service.PageResult[model.Booking]), args.Error(1)
}

func (m *mockBookingService) ListAllBookings(ctx context.Context, p model.Page) (service.PageResult[model.BookingWithAccount], error) {
	args := m.Called(p)
	return args.Get(0).(service.PageResult[model.BookingWithAccount]), args.Error(1)
}

func (m *mockBookingService) ListHistory(ctx context.Context, p model.Page) (service.PageResult[model.Booking], error) {
	args := m.Called(p)
	return args.Get(0).(service.PageResult[model.Booking]), args.Error(1)
}

func (m *mockBookingService) Stats(ctx context.Context) (model.BookingStats, error) {
	args := m.Called()
	return args.Get(0).(model.BookingStats), args.Error(1)
}

// call serves target through h registered on its own path; uid > 0
// simulates an authenticated caller.
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, uid uint64, role string) *httptest.ResponseRecorder {
	t.Helper()
	route, _, _ := strings.Cut(target, "?")
	return callRoute(t, h, method, route, target, body, uid, role)
}

// callRoute registers h on route so path parameters resolve through the
// router, then serves target.
func callRoute(t *testing.T, h echo.HandlerFunc, method, route, target, body string, uid uint64, role string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	var herr error
	e.Add(method, route, func(c echo.Context) error {
		if uid > 0 {
			c.Set(middleware.CtxUserID, uid)
			c.Set(middleware.CtxRole, role)
		}
		herr = h(c)
		return herr
	})
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.NoError(t, herr)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateBookingGuest(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("CreateBooking", mock.MatchedBy(func(in service.CreateBookingInput) bool {
		return in.AccountID == nil && in.MovieID == "m1" && len(in.Seats) == 2 &&
			len(in.Refreshments) == 1 && in.Refreshments[0].UnitPriceCents == 12000 && in.Pricing == nil
	})).Return(model.Booking{BookingCode: "MBX", Status: model.StatusBooked}, nil)

	body := `{"movie_id":"m1","show_time":"2026-03-01 18:30","seats":["A1","A2"],
		"refreshments":[{"name":"popcorn","quantity":1}],"email":"a@b.co","phone":"9876543210"}`
	rec := call(t, NewBookingHandler(svc, logging.Discard()).Create, http.MethodPost, "/api/bookings", body, 0, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "Booking created successfully", out["message"])
	assert.Equal(t, "MBX", out["booking"].(map[string]any)["booking_id"])
	svc.AssertExpectations(t)
}

func TestCreateBookingAttachesCaller(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("CreateBooking", mock.MatchedBy(func(in service.CreateBookingInput) bool {
		return in.AccountID != nil && *in.AccountID == 9 && in.Pricing != nil && in.Pricing.GrandTotalCents == 40000
	})).Return(model.Booking{BookingCode: "MBY"}, nil)

	body := `{"movie_id":"m1","show_time":"t","seats":["A1","A2"],"email":"a@b.co","phone":"1",
		"seat_subtotal_cents":40000,"refreshment_subtotal_cents":0,"grand_total_cents":40000}`
	rec := call(t, NewBookingHandler(svc, logging.Discard()).Create, http.MethodPost, "/api/bookings", body, 9, model.RoleUser)
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreateBookingUnknownRefreshment(t *testing.T) {
	svc := new(mockBookingService)
	body := `{"movie_id":"m1","show_time":"2026-03-01 18:30","seats":["A1"],
		"refreshments":[{"name":"caviar","quantity":1}],"email":"a@b.co","phone":"9876543210"}`
	rec := call(t, NewBookingHandler(svc, logging.Discard()).Create, http.MethodPost, "/api/bookings", body, 0, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg, _ := decode(t, rec)["error"].(string)
	assert.Contains(t, msg, `unknown refreshment "caviar"`)
	assert.NotContains(t, msg, "-1")
	svc.AssertNotCalled(t, "CreateBooking", mock.Anything)
}

func TestCreateBookingErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: seats is required", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: email", service.ErrContactNotVerified), http.StatusForbidden},
		{repository.ErrSeatConflict, http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := new(mockBookingService)
		svc.On("CreateBooking", mock.Anything).Return(model.Booking{}, tt.err)
		rec := call(t, NewBookingHandler(svc, logging.Discard()).Create, http.MethodPost, "/api/bookings", `{"seats":[]}`, 0, "")
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
		assert.NotEmpty(t, decode(t, rec)["error"])
	}

	rec := call(t, NewBookingHandler(new(mockBookingService), logging.Discard()).Create, http.MethodPost, "/api/bookings", `{bad`, 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelBooking(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("CancelBooking", "MBX").Return(service.CancelResult{
		Booking:     model.Booking{BookingCode: "MBX", Status: model.StatusCancelled, RefundCents: 32000},
		RefundCents: 32000,
		Message:     service.MsgCancelled,
	}, nil)
	svc.On("CancelBooking", "MBY").Return(service.CancelResult{}, repository.ErrAlreadyCancelled)
	svc.On("CancelBooking", "MBZ").Return(service.CancelResult{}, repository.ErrNotFound)
	h := NewBookingHandler(svc, logging.Discard())

	rec := callRoute(t, h.Cancel, http.MethodPut, "/api/bookings/cancel/:id", "/api/bookings/cancel/MBX", "", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, service.MsgCancelled, out["message"])
	assert.EqualValues(t, 32000, out["refund_cents"])

	rec = callRoute(t, h.Cancel, http.MethodPut, "/api/bookings/cancel/:id", "/api/bookings/cancel/MBY", "", 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Already cancelled", decode(t, rec)["error"])

	rec = callRoute(t, h.Cancel, http.MethodPut, "/api/bookings/cancel/:id", "/api/bookings/cancel/MBZ", "", 0, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteBooking(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("DeleteBooking", "5", uint64(1)).Return(nil)
	svc.On("DeleteBooking", "5", uint64(2)).Return(repository.ErrForbidden)
	h := NewBookingHandler(svc, logging.Discard())

	rec := callRoute(t, h.Delete, http.MethodDelete, "/api/bookings/:id", "/api/bookings/5", "", 2, model.RoleUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = callRoute(t, h.Delete, http.MethodDelete, "/api/bookings/:id", "/api/bookings/5", "", 1, model.RoleUser)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Booking deleted successfully", decode(t, rec)["message"])

	rec = callRoute(t, h.Delete, http.MethodDelete, "/api/bookings/:id", "/api/bookings/5", "", 0, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNumberOfCalls(t, "DeleteBooking", 2)
}

func TestListForUser(t *testing.T) {
	svc := new(mockBookingService)
	page := model.Page{Limit: 10, Offset: 0}
	svc.On("ListBookingsForAccount", uint64(4), page).Return(service.PageResult[model.Booking]{
		Items: []model.Booking{{BookingCode: "MBA"}}, Total: 1, Limit: 10,
	}, nil)
	h := NewBookingHandler(svc, logging.Discard())

	rec := callRoute(t, h.ListForUser, http.MethodGet, "/api/bookings/user/:userId", "/api/bookings/user/4?limit=10", "", 4, model.RoleUser)
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.EqualValues(t, 1, out["total"])
	assert.Len(t, out["items"], 1)

	rec = callRoute(t, h.ListForUser, http.MethodGet, "/api/bookings/user/:userId", "/api/bookings/user/4?limit=10", "", 1, model.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = callRoute(t, h.ListForUser, http.MethodGet, "/api/bookings/user/:userId", "/api/bookings/user/4", "", 5, model.RoleUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = callRoute(t, h.ListForUser, http.MethodGet, "/api/bookings/user/:userId", "/api/bookings/user/x", "", 5, model.RoleUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNumberOfCalls(t, "ListBookingsForAccount", 2)
}

func TestCallRouteResolvesPathParams(t *testing.T) {
	var got string
	h := func(c echo.Context) error {
		got = c.Param("id")
		return c.NoContent(http.StatusNoContent)
	}
	rec := callRoute(t, h, http.MethodPut, "/api/bookings/cancel/:id", "/api/bookings/cancel/MB42", "", 0, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "MB42", got)
}

func TestListAllAndHistory(t *testing.T) {
	svc := new(mockBookingService)
	name := "Asha"
	svc.On("ListAllBookings", model.Page{Limit: model.DefaultPageLimit, Offset: 5}).Return(service.PageResult[model.BookingWithAccount]{
		Items: []model.BookingWithAccount{{Booking: model.Booking{BookingCode: "MBA"}, AccountName: &name}},
		Total: 6,
	}, nil)
	svc.On("ListHistory", model.Page{Limit: model.MaxPageLimit}).Return(service.PageResult[model.Booking]{Items: []model.Booking{}}, nil)
	h := NewBookingHandler(svc, logging.Discard())

	rec := call(t, h.ListAll, http.MethodGet, "/api/bookings?offset=5", "", 1, model.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	assert.Equal(t, "Asha", items[0].(map[string]any)["account_name"])

	rec = call(t, h.History, http.MethodGet, "/api/bookings/history?limit=5000", "", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestStats(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("Stats").Return(model.BookingStats{BookedCount: 3, CancelledCount: 1}, nil)
	rec := call(t, NewBookingHandler(svc, logging.Discard()).Stats, http.MethodGet, "/api/admin/stats", "", 1, model.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["total_bookings"])
}

func TestPageFromDefaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=abc&offset=-3", nil), httptest.NewRecorder())
	assert.Equal(t, model.Page{Limit: model.DefaultPageLimit, Offset: 0}, pageFrom(c))
}
