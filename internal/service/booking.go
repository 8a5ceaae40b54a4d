// Package service holds the booking lifecycle: creation, cancellation with
// refund, owner-only deletion and the listing views.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/notify"
	"github.com/iliyamo/movie-booking/internal/pricing"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/utils"
	"github.com/iliyamo/movie-booking/internal/verification"
)

const (
	MsgCancelled         = "Booking cancelled successfully"
	MsgCancelledNoRefund = "Cancelled after show time. No refund."

	codeAttempts = 3
)

// BookingStore is the persistence the lifecycle needs. *repository.BookingRepo
// satisfies it.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	GetByCode(ctx context.Context, code string) (model.Booking, error)
	Cancel(ctx context.Context, id uint64, refundCents int64, at time.Time) (model.Booking, error)
	Delete(ctx context.Context, id uint64) error
	ListByUser(ctx context.Context, userID uint64, page model.Page) ([]model.Booking, int, error)
	List(ctx context.Context, page model.Page) ([]model.Booking, int, error)
	ListWithAccounts(ctx context.Context, page model.Page) ([]model.BookingWithAccount, int, error)
	Stats(ctx context.Context, limit int) (model.BookingStats, error)
}

// ContactVerifier answers whether a destination passed the passcode check.
type ContactVerifier interface {
	IsVerified(ctx context.Context, channel verification.Channel, destination, purpose string) (bool, error)
}

// Options tunes a BookingService.
type Options struct {
	// NotifyTimeout bounds a single notification dispatch.
	NotifyTimeout time.Duration
	// VerifyChannels must all be verified at checkout when a verifier is set.
	VerifyChannels []verification.Channel
	// Location is applied to show times without an offset.
	Location *time.Location
	// StatsRecent is how many recent rows the stats view lists per status.
	StatsRecent int
}

// BookingService implements the booking lifecycle over a BookingStore.
type BookingService struct {
	store    BookingStore
	calc     pricing.Calculator
	notifier notify.Dispatcher
	verifier ContactVerifier
	opts     Options
	log      *logrus.Logger
	now      func() time.Time
	newCode  func(time.Time) (string, error)
}

// NewBookingService wires the lifecycle. notifier may be nil to disable
// notifications and verifier may be nil to skip the contact check.
func NewBookingService(store BookingStore, calc pricing.Calculator, notifier notify.Dispatcher, verifier ContactVerifier, opts Options, log *logrus.Logger) *BookingService {
	if notifier == nil {
		notifier = notify.Nop
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 3 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StatsRecent <= 0 {
		opts.StatsRecent = 10
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BookingService{
		store:    store,
		calc:     calc,
		notifier: notifier,
		verifier: verifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
		newCode:  utils.NewBookingCode,
	}
}

// CreateBookingInput is everything a buyer submits at checkout.
type CreateBookingInput struct {
	AccountID *uint64

	MovieID   string `validate:"required,max=64"`
	ShowTime  string `validate:"required,max=64"`
	Title     string `validate:"max=255"`
	PosterURL string `validate:"max=512"`
	Language  string `validate:"max=64"`

	Seats        []string `validate:"required,min=1,dive,seat"`
	Refreshments []model.RefreshmentLine

	// Pricing is the client's own quote. When sent it must match the
	// server's quote for the same seats and refreshments exactly.
	Pricing *model.Pricing
	// SeatRateCents overrides the default per-seat rate.
	SeatRateCents *int64

	PaymentMethod string
	Email         string `validate:"required,email,max=255"`
	Phone         string `validate:"required,max=32"`
}

// CreateBooking validates the input, prices and stores the booking with
// status Booked, then sends a best-effort confirmation. Nothing is stored
// when validation fails.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (model.Booking, error) {
	in.MovieID = strings.TrimSpace(in.MovieID)
	in.ShowTime = strings.TrimSpace(in.ShowTime)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	seats, dup := normalizeSeats(in.Seats)
	if dup != "" {
		return model.Booking{}, fmt.Errorf("%w: seat %s requested twice", ErrValidation, dup)
	}
	in.Seats = seats
	if err := validate.Struct(in); err != nil {
		return model.Booking{}, validationError(err)
	}
	method, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: payment method %q is not one of upi, card, cash", ErrValidation, in.PaymentMethod)
	}
	for i, l := range in.Refreshments {
		if strings.TrimSpace(l.Name) == "" {
			return model.Booking{}, fmt.Errorf("%w: refreshment %d has no name", ErrValidation, i)
		}
	}

	quote, err := s.calc.Quote(len(seats), in.Refreshments, in.SeatRateCents)
	if err != nil {
		return model.Booking{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if in.Pricing != nil && *in.Pricing != quote {
		return model.Booking{}, fmt.Errorf("%w: pricing %d/%d/%d does not match %d seat(s) and refreshments (%d/%d/%d)",
			ErrValidation,
			in.Pricing.SeatSubtotalCents, in.Pricing.RefreshmentSubtotalCents, in.Pricing.GrandTotalCents,
			len(seats), quote.SeatSubtotalCents, quote.RefreshmentSubtotalCents, quote.GrandTotalCents)
	}

	if err := s.checkContacts(ctx, in.Email, in.Phone); err != nil {
		return model.Booking{}, err
	}

	refs := in.Refreshments
	if refs == nil {
		refs = []model.RefreshmentLine{}
	}
	b := model.Booking{
		UserID: in.AccountID,
		Email:  in.Email,
		Phone:  in.Phone,
		Show: model.ShowSnapshot{
			MovieID:   in.MovieID,
			ShowTime:  in.ShowTime,
			Title:     in.Title,
			PosterURL: in.PosterURL,
			Language:  in.Language,
			Slot:      s.slot(in.ShowTime),
		},
		Seats:         seats,
		Refreshments:  refs,
		Pricing:       quote,
		PaymentMethod: method,
		Status:        model.StatusBooked,
	}
	if err := s.insert(ctx, &b); err != nil {
		return model.Booking{}, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": b.BookingCode,
		"movie_id":   b.Show.MovieID,
		"seats":      len(b.Seats),
		"total":      b.Pricing.GrandTotalCents,
	}).Info("booking created")
	s.dispatch(ctx, notify.NewEvent(notify.BookingConfirmed, b, s.now()))
	return b, nil
}

// slot canonicalizes a parseable show time so equal instants written
// differently share seat rows.
func (s *BookingService) slot(showTime string) string {
	t, ok := parseShowTime(showTime, s.opts.Location)
	if !ok {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *BookingService) checkContacts(ctx context.Context, email, phone string) error {
	if s.verifier == nil {
		return nil
	}
	for _, ch := range s.opts.VerifyChannels {
		dest := email
		if ch == verification.ChannelPhone {
			dest = phone
		}
		ok, err := s.verifier.IsVerified(ctx, ch, dest, verification.PurposeCheckout)
		if errors.Is(err, verification.ErrInvalidDestination) {
			return fmt.Errorf("%w: %s %v", ErrValidation, ch, err)
		}
		if err != nil {
			return fmt.Errorf("check %s verification: %w", ch, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrContactNotVerified, ch)
		}
	}
	return nil
}

// insert assigns a fresh booking code and stores b, regenerating the code
// when it collides.
func (s *BookingService) insert(ctx context.Context, b *model.Booking) error {
	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		if b.BookingCode, err = s.newCode(s.now()); err != nil {
			return fmt.Errorf("generate booking code: %w", err)
		}
		err = s.store.Create(ctx, b)
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return err
		}
	}
	return err
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	Booking     model.Booking
	RefundCents int64
	Message     string
}

// CancelBooking moves a Booked booking to Cancelled. Before the show the
// buyer gets 80% of the grand total back; afterwards nothing. A show time
// that cannot be parsed is treated as not yet started. ref is the numeric
// id or the booking code.
func (s *BookingService) CancelBooking(ctx context.Context, ref string) (CancelResult, error) {
	b, err := s.resolve(ctx, ref)
	if err != nil {
		return CancelResult{}, err
	}
	if b.Status == model.StatusCancelled {
		return CancelResult{}, repository.ErrAlreadyCancelled
	}

	now := s.now()
	refund, msg := pricing.Refund(b.Pricing.GrandTotalCents), MsgCancelled
	if show, ok := parseShowTime(b.Show.ShowTime, s.opts.Location); ok && now.After(show) {
		refund, msg = 0, MsgCancelledNoRefund
	}

	cancelled, err := s.store.Cancel(ctx, b.ID, refund, now)
	if err != nil {
		return CancelResult{}, err
	}
	s.log.WithFields(logrus.Fields{"booking_id": cancelled.BookingCode, "refund": refund}).Info("booking cancelled")
	s.dispatch(ctx, notify.NewEvent(notify.BookingCancelled, cancelled, now))
	return CancelResult{Booking: cancelled, RefundCents: refund, Message: msg}, nil
}

// DeleteBooking removes a booking owned by requesterID. Guest bookings have
// no owner and can never be deleted this way.
func (s *BookingService) DeleteBooking(ctx context.Context, ref string, requesterID uint64) error {
	b, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if !b.OwnedBy(requesterID) {
		return repository.ErrForbidden
	}
	if err := s.store.Delete(ctx, b.ID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"booking_id": b.BookingCode, "user_id": requesterID}).Info("booking deleted")
	return nil
}

func (s *BookingService) resolve(ctx context.Context, ref string) (model.Booking, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Booking{}, repository.ErrNotFound
	}
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return s.store.GetByID(ctx, id)
	}
	return s.store.GetByCode(ctx, strings.ToUpper(ref))
}

// PageResult is one page of a list view.
type PageResult[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newPage[T any](items []T, total int, p model.Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}
}

// ListBookingsForAccount returns the account's bookings, newest first.
func (s *BookingService) ListBookingsForAccount(ctx context.Context, accountID uint64, page model.Page) (PageResult[model.Booking], error) {
	page = page.Normalize()
	items, total, err := s.store.ListByUser(ctx, accountID, page)
	if err != nil {
		return PageResult[model.Booking]{}, err
	}
	return newPage(items, total, page), nil
}

// ListAllBookings returns every booking with the owning account's name and
// email, newest first.
func (s *BookingService) ListAllBookings(ctx context.Context, page model.Page) (PageResult[model.BookingWithAccount], error) {
	page = page.Normalize()
	items, total, err := s.store.ListWithAccounts(ctx, page)
	if err != nil {
		return PageResult[model.BookingWithAccount]{}, err
	}
	return newPage(items, total, page), nil
}

// ListHistory returns every booking without account details, newest first.
func (s *BookingService) ListHistory(ctx context.Context, page model.Page) (PageResult[model.Booking], error) {
	page = page.Normalize()
	items, total, err := s.store.List(ctx, page)
	if err != nil {
		return PageResult[model.Booking]{}, err
	}
	return newPage(items, total, page), nil
}

// Stats aggregates booking counts for the admin dashboard.
func (s *BookingService) Stats(ctx context.Context) (model.BookingStats, error) {
	return s.store.Stats(ctx, s.opts.StatsRecent)
}

// dispatch sends ev within the notify timeout. Failures are logged only;
// the booking is already committed.
func (s *BookingService) dispatch(ctx context.Context, ev notify.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()
	if err := s.notifier.Dispatch(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{
			"booking_id": ev.BookingCode,
			"type":       ev.Type,
		}).WithError(err).Warn("booking notification failed")
	}
}
