package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/movie-booking/internal/model"
)

// BookingRepo persists bookings and the per-show seat rows that keep two
// bookings from taking the same seat. All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.booking_code, b.user_id, b.email, b.phone,
       b.movie_id, b.show_time, b.movie_title, b.poster_url, b.language,
       b.seat_labels, b.refreshments,
       b.seat_subtotal_cents, b.refreshment_subtotal_cents, b.grand_total_cents,
       b.payment_method, b.status, b.refund_cents, b.created_at, b.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanBooking reads one bookingColumns row; extra destinations are
// appended after the booking columns.
func scanBooking(s rowScanner, extra ...any) (model.Booking, error) {
	var (
		b         model.Booking
		userID    sql.NullInt64
		seatsJSON []byte
		refsJSON  []byte
	)
	dest := []any{
		&b.ID, &b.BookingCode, &userID, &b.Email, &b.Phone,
		&b.Show.MovieID, &b.Show.ShowTime, &b.Show.Title, &b.Show.PosterURL, &b.Show.Language,
		&seatsJSON, &refsJSON,
		&b.Pricing.SeatSubtotalCents, &b.Pricing.RefreshmentSubtotalCents, &b.Pricing.GrandTotalCents,
		&b.PaymentMethod, &b.Status, &b.RefundCents, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return model.Booking{}, err
	}
	if userID.Valid {
		uid := uint64(userID.Int64)
		b.UserID = &uid
	}
	if err := json.Unmarshal(seatsJSON, &b.Seats); err != nil {
		return model.Booking{}, fmt.Errorf("decode seats of booking %d: %w", b.ID, err)
	}
	if len(refsJSON) > 0 {
		if err := json.Unmarshal(refsJSON, &b.Refreshments); err != nil {
			return model.Booking{}, fmt.Errorf("decode refreshments of booking %d: %w", b.ID, err)
		}
	}
	if b.Refreshments == nil {
		b.Refreshments = []model.RefreshmentLine{}
	}
	return b, nil
}

// bookingWriteError maps duplicate-key failures of the bookings and
// booking_seats tables to sentinel errors.
func bookingWriteError(err error) error {
	key, dup := duplicateKey(err)
	if !dup {
		return err
	}
	switch key {
	case "uq_booking_seats_show_seat":
		return ErrSeatConflict
	case "uq_bookings_code":
		return ErrDuplicateCode
	}
	return fmt.Errorf("%w: %s", ErrConflict, key)
}

// Create inserts the booking and its seat rows in one transaction and
// fills in ID, CreatedAt and UpdatedAt. A seat already taken for the same
// show yields ErrSeatConflict; a colliding booking code ErrDuplicateCode.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	refs := b.Refreshments
	if refs == nil {
		refs = []model.RefreshmentLine{}
	}
	seatsJSON, err := json.Marshal(b.Seats)
	if err != nil {
		return err
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO bookings (booking_code, user_id, email, phone,
        movie_id, show_time, movie_title, poster_url, language,
        seat_labels, refreshments,
        seat_subtotal_cents, refreshment_subtotal_cents, grand_total_cents,
        payment_method, status, refund_cents)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var userID any
	if b.UserID != nil {
		userID = *b.UserID
	}
	res, err := tx.ExecContext(ctx, ins,
		b.BookingCode, userID, b.Email, b.Phone,
		b.Show.MovieID, b.Show.ShowTime, b.Show.Title, b.Show.PosterURL, b.Show.Language,
		seatsJSON, refsJSON,
		b.Pricing.SeatSubtotalCents, b.Pricing.RefreshmentSubtotalCents, b.Pricing.GrandTotalCents,
		b.PaymentMethod, b.Status, b.RefundCents,
	)
	if err != nil {
		return bookingWriteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_id, movie_id, show_time, seat_label) VALUES `
		args := make([]any, 0, len(b.Seats)*4)
		for i, seat := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			args = append(args, b.ID, b.Show.MovieID, b.Show.SeatKey(), seat)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return bookingWriteError(err)
		}
	}

	// read back defaults filled by the server
	err = tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM bookings WHERE id = ?`, b.ID).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID returns the booking with the given system id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	return r.getOne(ctx, r.db, `WHERE b.id = ?`, id)
}

// GetByCode returns the booking with the given human-readable code.
func (r *BookingRepo) GetByCode(ctx context.Context, code string) (model.Booking, error) {
	return r.getOne(ctx, r.db, `WHERE b.booking_code = ?`, strings.ToUpper(strings.TrimSpace(code)))
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *BookingRepo) getOne(ctx context.Context, q queryRower, where string, arg any) (model.Booking, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b `+where+` LIMIT 1`, arg)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// Cancel flips a Booked booking to Cancelled with the given refund and
// releases its seats. The update is conditional on the current status, so
// of two concurrent callers only one succeeds; the other gets
// ErrAlreadyCancelled. Unknown ids yield ErrNotFound.
func (r *BookingRepo) Cancel(ctx context.Context, id uint64, refundCents int64, at time.Time) (model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upd = `UPDATE bookings SET status = ?, refund_cents = ?, updated_at = ?
                 WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, upd, model.StatusCancelled, refundCents, at.UTC(), id, model.StatusBooked)
	if err != nil {
		return model.Booking{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Booking{}, err
	}
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrNotFound
		}
		if err != nil {
			return model.Booking{}, err
		}
		return model.Booking{}, ErrAlreadyCancelled
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, id); err != nil {
		return model.Booking{}, err
	}
	b, err := r.getOne(ctx, tx, `WHERE b.id = ?`, id)
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	committed = true
	return b, nil
}

// Delete hard-removes the booking; its seat rows go with it via the
// foreign key cascade.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns one page of the account's bookings, newest first,
// and the total number of bookings the account has.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, page model.Page) ([]model.Booking, int, error) {
	page = page.Normalize()
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.user_id = ?
         ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`,
		userID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]model.Booking, 0, page.Limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

// List returns one page of all bookings, newest first.
func (r *BookingRepo) List(ctx context.Context, page model.Page) ([]model.Booking, int, error) {
	page = page.Normalize()
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b
         ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]model.Booking, 0, page.Limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

// ListWithAccounts is List joined with the owning account's name and
// email. Guest bookings carry nil account fields.
func (r *BookingRepo) ListWithAccounts(ctx context.Context, page model.Page) ([]model.BookingWithAccount, int, error) {
	page = page.Normalize()
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+`, u.name, u.email
         FROM bookings b
         LEFT JOIN users u ON u.id = b.user_id
         ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]model.BookingWithAccount, 0, page.Limit)
	for rows.Next() {
		var name, email sql.NullString
		b, err := scanBooking(rows, &name, &email)
		if err != nil {
			return nil, 0, err
		}
		item := model.BookingWithAccount{Booking: b}
		if name.Valid {
			item.AccountName = &name.String
		}
		if email.Valid {
			item.AccountEmail = &email.String
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// Stats counts bookings per status and returns the latest limit bookings
// of each status for the admin dashboard.
func (r *BookingRepo) Stats(ctx context.Context, limit int) (model.BookingStats, error) {
	stats := model.BookingStats{
		RecentBooked:    []model.BookingSummary{},
		RecentCancelled: []model.BookingSummary{},
	}
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var (
			status model.BookingStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return stats, err
		}
		switch status {
		case model.StatusBooked:
			stats.BookedCount = n
		case model.StatusCancelled:
			stats.CancelledCount = n
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, err
	}
	rows.Close()

	if stats.RecentBooked, err = r.recentByStatus(ctx, model.StatusBooked, limit); err != nil {
		return stats, err
	}
	if stats.RecentCancelled, err = r.recentByStatus(ctx, model.StatusCancelled, limit); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *BookingRepo) recentByStatus(ctx context.Context, status model.BookingStatus, limit int) ([]model.BookingSummary, error) {
	if limit <= 0 {
		limit = model.DefaultPageLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT booking_code, movie_title, seat_labels, show_time, email, grand_total_cents, status, updated_at
         FROM bookings WHERE status = ?
         ORDER BY created_at DESC, id DESC LIMIT ?`,
		status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BookingSummary{}
	for rows.Next() {
		var (
			s         model.BookingSummary
			seatsJSON []byte
			updatedAt time.Time
			seats     []string
		)
		if err := rows.Scan(&s.BookingCode, &s.Title, &seatsJSON, &s.ShowTime, &s.Email, &s.AmountCents, &s.Status, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(seatsJSON, &seats); err != nil {
			return nil, fmt.Errorf("decode seats of booking %s: %w", s.BookingCode, err)
		}
		s.Seats = strings.Join(seats, ", ")
		if s.Status == model.StatusCancelled {
			at := updatedAt
			s.CancelledAt = &at
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
