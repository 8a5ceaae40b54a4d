package model

import (
	"encoding/json"
	"strings"
	"time"
)

// BookingStatus is the lifecycle state of a booking. Booked is the only
// state a booking is created in; Cancelled is terminal.
type BookingStatus string

const (
	StatusBooked    BookingStatus = "Booked"
	StatusCancelled BookingStatus = "Cancelled"
)

// PaymentMethod records how the buyer intends to pay.
type PaymentMethod string

const (
	PaymentUPI  PaymentMethod = "upi"
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// ParsePaymentMethod normalizes a raw method. Empty input yields the
// default (cash); unknown input reports false.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return PaymentCash, true
	case PaymentUPI:
		return PaymentUPI, true
	case PaymentCard:
		return PaymentCard, true
	case PaymentCash:
		return PaymentCash, true
	}
	return "", false
}

// ShowSnapshot is the show information captured when the booking was made.
// It is copied into the booking and never follows later catalog changes.
type ShowSnapshot struct {
	MovieID   string `json:"movie_id"`   // opaque catalog identifier
	ShowTime  string `json:"show_time"`  // as supplied by the client
	Title     string `json:"title"`      // display title
	PosterURL string `json:"poster_url"` // display poster
	Language  string `json:"language"`   // display language

	// Slot is the show instant in canonical form, set when ShowTime
	// parses. It keys seat rows and is not part of the stored snapshot.
	Slot string `json:"-"`
}

// SeatKey names the show in the seat uniqueness key: Slot when known,
// otherwise the raw ShowTime.
func (s ShowSnapshot) SeatKey() string {
	if s.Slot != "" {
		return s.Slot
	}
	return s.ShowTime
}

// RefreshmentLine is one snack or combo added to the booking.
type RefreshmentLine struct {
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// Pricing holds the monetary totals of a booking in minor units.
// GrandTotalCents is always SeatSubtotalCents + RefreshmentSubtotalCents.
type Pricing struct {
	SeatSubtotalCents        int64 `json:"seat_subtotal_cents"`
	RefreshmentSubtotalCents int64 `json:"refreshment_subtotal_cents"`
	GrandTotalCents          int64 `json:"grand_total_cents"`
}

// MarshalJSON also emits total_price_cents, the legacy alias of the grand
// total that older clients still read.
func (p Pricing) MarshalJSON() ([]byte, error) {
	type plain Pricing
	return json.Marshal(struct {
		plain
		TotalPriceCents int64 `json:"total_price_cents"`
	}{plain(p), p.GrandTotalCents})
}

// Consistent reports whether the totals add up and none is negative.
func (p Pricing) Consistent() bool {
	if p.SeatSubtotalCents < 0 || p.RefreshmentSubtotalCents < 0 || p.GrandTotalCents < 0 {
		return false
	}
	return p.GrandTotalCents == p.SeatSubtotalCents+p.RefreshmentSubtotalCents
}

// Booking mirrors a row of the `bookings` table together with its seats
// and refreshment lines.
type Booking struct {
	ID            uint64            `json:"id"`             // bookings.id
	BookingCode   string            `json:"booking_id"`     // bookings.booking_code, human readable
	UserID        *uint64           `json:"user_id"`        // bookings.user_id (nullable, guest when nil)
	Email         string            `json:"email"`          // bookings.email
	Phone         string            `json:"phone"`          // bookings.phone
	Show          ShowSnapshot      `json:"show"`           // bookings.movie_id, show_time, movie_title, poster_url, language
	Seats         []string          `json:"seats"`          // bookings.seat_labels (JSON)
	Refreshments  []RefreshmentLine `json:"refreshments"`   // bookings.refreshments (JSON)
	Pricing       Pricing           `json:"pricing"`        // bookings.*_cents
	PaymentMethod PaymentMethod     `json:"payment_method"` // bookings.payment_method
	Status        BookingStatus     `json:"status"`         // bookings.status
	RefundCents   int64             `json:"refund_cents"`   // bookings.refund_cents
	CreatedAt     time.Time         `json:"created_at"`     // bookings.created_at
	UpdatedAt     time.Time         `json:"updated_at"`     // bookings.updated_at
}

// TotalPriceCents is the legacy name of the grand total.
func (b Booking) TotalPriceCents() int64 { return b.Pricing.GrandTotalCents }

// OwnedBy reports whether the booking belongs to the given account.
// Guest bookings are owned by nobody.
func (b Booking) OwnedBy(userID uint64) bool {
	return b.UserID != nil && *b.UserID == userID
}

// BookingWithAccount adds the display fields of the owning account.
// Both are nil for guest bookings.
type BookingWithAccount struct {
	Booking
	AccountName  *string `json:"account_name"`
	AccountEmail *string `json:"account_email"`
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Normalize clamps the page into the supported range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// BookingSummary is the compact row shown on the admin dashboard.
type BookingSummary struct {
	BookingCode string        `json:"booking_id"`
	Title       string        `json:"title"`
	Seats       string        `json:"seats"`
	ShowTime    string        `json:"show_time"`
	Email       string        `json:"user_email"`
	AmountCents int64         `json:"amount_cents"`
	Status      BookingStatus `json:"status"`
	CancelledAt *time.Time    `json:"cancel_date,omitempty"`
}

// BookingStats aggregates booking counts for administrators.
type BookingStats struct {
	BookedCount     int              `json:"total_bookings"`
	CancelledCount  int              `json:"cancelled_bookings"`
	RecentBooked    []BookingSummary `json:"booked_movies"`
	RecentCancelled []BookingSummary `json:"cancelled_movies"`
}
