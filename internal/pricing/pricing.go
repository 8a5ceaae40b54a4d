// Package pricing turns seat counts and refreshment lines into booking
// totals. All amounts are integer minor units (cents/paise).
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/iliyamo/movie-booking/internal/model"
)

const (
	// DefaultSeatRateCents is the flat price of one seat (200 currency units).
	DefaultSeatRateCents int64 = 20000

	// RefundRatePercent is the share of the grand total returned on a
	// cancellation made before the show starts (a refund rate of 0.8).
	RefundRatePercent int64 = 80
)

// ErrInvalidInput is returned for negative counts or prices, for
// refreshment quantities below one and for totals that do not fit in an
// int64.
var ErrInvalidInput = errors.New("invalid pricing input")

// Calculator computes booking totals. The zero value charges
// DefaultSeatRateCents per seat.
type Calculator struct {
	SeatRateCents int64
}

// New returns a Calculator charging rateCents per seat; a non-positive
// rate falls back to DefaultSeatRateCents.
func New(rateCents int64) Calculator {
	if rateCents <= 0 {
		rateCents = DefaultSeatRateCents
	}
	return Calculator{SeatRateCents: rateCents}
}

func (c Calculator) seatRate() int64 {
	if c.SeatRateCents <= 0 {
		return DefaultSeatRateCents
	}
	return c.SeatRateCents
}

// Quote prices seatCount seats plus the given refreshment lines. A non-nil
// rateOverride replaces the calculator's per-seat rate (for example a
// show-specific price).
func (c Calculator) Quote(seatCount int, lines []model.RefreshmentLine, rateOverride *int64) (model.Pricing, error) {
	if seatCount < 0 {
		return model.Pricing{}, fmt.Errorf("%w: seat count %d", ErrInvalidInput, seatCount)
	}
	rate := c.seatRate()
	if rateOverride != nil {
		if *rateOverride < 0 {
			return model.Pricing{}, fmt.Errorf("%w: seat rate %d", ErrInvalidInput, *rateOverride)
		}
		rate = *rateOverride
	}

	var refreshments int64
	for i, l := range lines {
		if l.Quantity < 1 {
			return model.Pricing{}, fmt.Errorf("%w: refreshment %d quantity %d", ErrInvalidInput, i, l.Quantity)
		}
		if l.UnitPriceCents < 0 {
			return model.Pricing{}, fmt.Errorf("%w: refreshment %d price %d", ErrInvalidInput, i, l.UnitPriceCents)
		}
		line, ok := mul(l.UnitPriceCents, int64(l.Quantity))
		if !ok {
			return model.Pricing{}, fmt.Errorf("%w: refreshment %d total overflows", ErrInvalidInput, i)
		}
		if refreshments, ok = add(refreshments, line); !ok {
			return model.Pricing{}, fmt.Errorf("%w: refreshment subtotal overflows", ErrInvalidInput)
		}
	}

	seats, ok := mul(int64(seatCount), rate)
	if !ok {
		return model.Pricing{}, fmt.Errorf("%w: seat subtotal overflows", ErrInvalidInput)
	}
	grand, ok := add(seats, refreshments)
	if !ok {
		return model.Pricing{}, fmt.Errorf("%w: grand total overflows", ErrInvalidInput)
	}
	return model.Pricing{
		SeatSubtotalCents:        seats,
		RefreshmentSubtotalCents: refreshments,
		GrandTotalCents:          grand,
	}, nil
}

// mul and add work on non-negative amounts and report false on overflow.
func mul(a, b int64) (int64, bool) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, false
	}
	return a * b, true
}

func add(a, b int64) (int64, bool) {
	if a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// Refund returns the amount paid back for a pre-show cancellation,
// rounded down to the minor unit.
func Refund(grandTotalCents int64) int64 {
	if grandTotalCents <= 0 {
		return 0
	}
	return grandTotalCents * RefundRatePercent / 100
}
