package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/pricing"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/service"
	"github.com/iliyamo/movie-booking/internal/verification"
)

// Validator plugs go-playground/validator into echo's c.Validate.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (cv *Validator) Validate(i any) error {
	if err := cv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// bindValid binds the body into dst and validates it. The returned error
// is already an *echo.HTTPError.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dst)
}

// writeError translates domain errors into the JSON error responses used
// across the API.
func writeError(c echo.Context, log *logrus.Logger, err error) error {
	status := http.StatusInternalServerError
	msg := "internal error"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		msg = httpErrorMessage(he)
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, pricing.ErrInvalidInput),
		errors.Is(err, verification.ErrUnknownChannel),
		errors.Is(err, verification.ErrInvalidDestination):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrAlreadyCancelled):
		status, msg = http.StatusBadRequest, "Already cancelled"
	case errors.Is(err, service.ErrContactNotVerified):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, repository.ErrForbidden):
		status, msg = http.StatusForbidden, "Unauthorized to delete this booking"
	case errors.Is(err, repository.ErrNotFound):
		status, msg = http.StatusNotFound, "Booking not found"
	case errors.Is(err, repository.ErrSeatConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, repository.ErrEmailExists):
		status, msg = http.StatusConflict, "email already exists"
	}
	if status >= http.StatusInternalServerError && log != nil {
		log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func httpErrorMessage(he *echo.HTTPError) string {
	if s, ok := he.Message.(string); ok {
		return s
	}
	return http.StatusText(he.Code)
}

// pageFrom reads ?limit= and ?offset=. Garbage values fall back to the
// defaults rather than failing the request.
func pageFrom(c echo.Context) model.Page {
	var p model.Page
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		p.Limit = n
	}
	if n, err := strconv.Atoi(c.QueryParam("offset")); err == nil {
		p.Offset = n
	}
	return p.Normalize()
}
