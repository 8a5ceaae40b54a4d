package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/service"
)

// BookingService is the lifecycle the booking endpoints drive.
type BookingService interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (model.Booking, error)
	CancelBooking(ctx context.Context, ref string) (service.CancelResult, error)
	DeleteBooking(ctx context.Context, ref string, requesterID uint64) error
	ListBookingsForAccount(ctx context.Context, accountID uint64, page model.Page) (service.PageResult[model.Booking], error)
	ListAllBookings(ctx context.Context, page model.Page) (service.PageResult[model.BookingWithAccount], error)
	ListHistory(ctx context.Context, page model.Page) (service.PageResult[model.Booking], error)
	Stats(ctx context.Context) (model.BookingStats, error)
}

// BookingHandler serves /api/bookings.
type BookingHandler struct {
	svc BookingService
	log *logrus.Logger
}

func NewBookingHandler(svc BookingService, log *logrus.Logger) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc, log: log}
}

type refreshmentReq struct {
	Name           string `json:"name"`
	UnitPriceCents *int64 `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

type createBookingReq struct {
	MovieID       string           `json:"movie_id"`
	ShowTime      string           `json:"show_time"`
	MovieTitle    string           `json:"movie_title"`
	PosterURL     string           `json:"poster_url"`
	Language      string           `json:"language"`
	Seats         []string         `json:"seats"`
	Refreshments  []refreshmentReq `json:"refreshments"`
	PaymentMethod string           `json:"payment_method"`
	Email         string           `json:"email"`
	Phone         string           `json:"phone"`

	// optional client quote, used only when all three are sent
	SeatSubtotalCents        *int64 `json:"seat_subtotal_cents"`
	RefreshmentSubtotalCents *int64 `json:"refreshment_subtotal_cents"`
	GrandTotalCents          *int64 `json:"grand_total_cents"`
}

func (r createBookingReq) input() (service.CreateBookingInput, error) {
	in := service.CreateBookingInput{
		MovieID:       r.MovieID,
		ShowTime:      r.ShowTime,
		Title:         r.MovieTitle,
		PosterURL:     r.PosterURL,
		Language:      r.Language,
		Seats:         r.Seats,
		PaymentMethod: r.PaymentMethod,
		Email:         r.Email,
		Phone:         r.Phone,
	}
	for _, l := range r.Refreshments {
		line := model.RefreshmentLine{Name: strings.TrimSpace(l.Name), Quantity: l.Quantity}
		switch {
		case l.UnitPriceCents != nil:
			line.UnitPriceCents = *l.UnitPriceCents
		default:
			item, ok := MenuItem(line.Name)
			if !ok {
				return service.CreateBookingInput{}, fmt.Errorf("%w: unknown refreshment %q", service.ErrValidation, line.Name)
			}
			line.UnitPriceCents = item.PriceCents
		}
		in.Refreshments = append(in.Refreshments, line)
	}
	if r.SeatSubtotalCents != nil && r.RefreshmentSubtotalCents != nil && r.GrandTotalCents != nil {
		in.Pricing = &model.Pricing{
			SeatSubtotalCents:        *r.SeatSubtotalCents,
			RefreshmentSubtotalCents: *r.RefreshmentSubtotalCents,
			GrandTotalCents:          *r.GrandTotalCents,
		}
	}
	return in, nil
}

// Create handles POST /api/bookings. A valid bearer token attaches the
// booking to the caller's account; without one it is a guest booking.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	in, err := req.input()
	if err != nil {
		return writeError(c, h.log, err)
	}
	if uid, ok := middleware.UserID(c); ok {
		in.AccountID = &uid
	}
	b, err := h.svc.CreateBooking(c.Request().Context(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Booking created successfully", "booking": b})
}

// ListForUser handles GET /api/bookings/user/:userId. Callers see their
// own bookings; administrators may look at anyone's.
func (h *BookingHandler) ListForUser(c echo.Context) error {
	target, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || target == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	caller, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if caller != target && !middleware.IsAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	res, err := h.svc.ListBookingsForAccount(c.Request().Context(), target, pageFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListAll handles GET /api/bookings (admin).
func (h *BookingHandler) ListAll(c echo.Context) error {
	res, err := h.svc.ListAllBookings(c.Request().Context(), pageFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// History handles GET /api/bookings/history.
func (h *BookingHandler) History(c echo.Context) error {
	res, err := h.svc.ListHistory(c.Request().Context(), pageFrom(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles PUT /api/bookings/cancel/:id where id is the numeric id or
// the booking code.
func (h *BookingHandler) Cancel(c echo.Context) error {
	res, err := h.svc.CancelBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":      res.Message,
		"refund_cents": res.RefundCents,
		"booking":      res.Booking,
	})
}

// Delete handles DELETE /api/bookings/:id; only the owner may delete.
func (h *BookingHandler) Delete(c echo.Context) error {
	caller, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.svc.DeleteBooking(c.Request().Context(), c.Param("id"), caller); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Booking deleted successfully"})
}

// Stats handles GET /api/admin/stats.
func (h *BookingHandler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, st)
}
