// Package notify delivers booking notifications to buyers over email and
// SMS. Delivery is best effort: callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/movie-booking/internal/model"
)

// EventType names what happened to a booking.
type EventType string

const (
	BookingConfirmed EventType = "booking.confirmed"
	BookingCancelled EventType = "booking.cancelled"
)

// Event is the self-contained payload a notification is rendered from.
// It is also the message body carried by the queue transports.
type Event struct {
	Type            EventType `json:"type"`
	BookingCode     string    `json:"booking_id"`
	MovieTitle      string    `json:"movie_title"`
	ShowTime        string    `json:"show_time"`
	Seats           []string  `json:"seats"`
	GrandTotalCents int64     `json:"grand_total_cents"`
	RefundCents     int64     `json:"refund_cents"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewEvent builds an event of type t from a booking.
func NewEvent(t EventType, b model.Booking, at time.Time) Event {
	return Event{
		Type:            t,
		BookingCode:     b.BookingCode,
		MovieTitle:      b.Show.Title,
		ShowTime:        b.Show.ShowTime,
		Seats:           append([]string(nil), b.Seats...),
		GrandTotalCents: b.Pricing.GrandTotalCents,
		RefundCents:     b.RefundCents,
		Email:           b.Email,
		Phone:           b.Phone,
		OccurredAt:      at.UTC(),
	}
}

// Validate reports whether the event can be delivered at all.
func (e Event) Validate() error {
	switch e.Type {
	case BookingConfirmed, BookingCancelled:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.BookingCode == "" {
		return errors.New("event without booking id")
	}
	return nil
}

// SeatList joins the seat labels for display.
func (e Event) SeatList() string { return strings.Join(e.Seats, ", ") }

// Dispatcher hands an event to whatever delivers it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, ev Event) error

func (f DispatcherFunc) Dispatch(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Nop drops every event.
var Nop Dispatcher = DispatcherFunc(func(context.Context, Event) error { return nil })

// FormatRupees renders minor units as a rupee amount, dropping a zero
// paise part: 40000 -> "400", 12345 -> "123.45".
func FormatRupees(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	if cents%100 == 0 {
		return fmt.Sprintf("%s%d", sign, cents/100)
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
