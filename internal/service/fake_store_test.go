package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
)

// memStore mimics BookingRepo: seat uniqueness per show, unique codes and
// a conditional cancel.
type memStore struct {
	mu       sync.Mutex
	nextID   uint64
	rows     map[uint64]model.Booking
	seats    map[string]uint64
	accounts map[uint64][2]string
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		rows:     make(map[uint64]model.Booking),
		seats:    make(map[string]uint64),
		accounts: make(map[uint64][2]string),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func seatKey(b model.Booking, seat string) string {
	return b.Show.MovieID + "|" + b.Show.SeatKey() + "|" + seat
}

func (m *memStore) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.BookingCode == b.BookingCode {
			return repository.ErrDuplicateCode
		}
	}
	for _, s := range b.Seats {
		if _, taken := m.seats[seatKey(*b, s)]; taken {
			return repository.ErrSeatConflict
		}
	}
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	b.ID = m.nextID
	b.CreatedAt, b.UpdatedAt = m.clock, m.clock
	for _, s := range b.Seats {
		m.seats[seatKey(*b, s)] = b.ID
	}
	m.rows[b.ID] = *b
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.BookingCode == code {
			return b, nil
		}
	}
	return model.Booking{}, repository.ErrNotFound
}

func (m *memStore) Cancel(_ context.Context, id uint64, refund int64, at time.Time) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	if b.Status != model.StatusBooked {
		return model.Booking{}, repository.ErrAlreadyCancelled
	}
	b.Status = model.StatusCancelled
	b.RefundCents = refund
	b.UpdatedAt = at
	for _, s := range b.Seats {
		delete(m.seats, seatKey(b, s))
	}
	m.rows[id] = b
	return b, nil
}

func (m *memStore) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, s := range b.Seats {
		delete(m.seats, seatKey(b, s))
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) sorted(keep func(model.Booking) bool) []model.Booking {
	out := []model.Booking{}
	for _, b := range m.rows {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func paginate[T any](all []T, p model.Page) []T {
	if p.Offset >= len(all) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[p.Offset:end]
}

func (m *memStore) ListByUser(_ context.Context, uid uint64, p model.Page) ([]model.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(b model.Booking) bool { return b.OwnedBy(uid) })
	return paginate(all, p), len(all), nil
}

func (m *memStore) List(_ context.Context, p model.Page) ([]model.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(model.Booking) bool { return true })
	return paginate(all, p), len(all), nil
}

func (m *memStore) ListWithAccounts(_ context.Context, p model.Page) ([]model.BookingWithAccount, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(model.Booking) bool { return true })
	out := make([]model.BookingWithAccount, 0, len(all))
	for _, b := range all {
		row := model.BookingWithAccount{Booking: b}
		if b.UserID != nil {
			if acc, ok := m.accounts[*b.UserID]; ok {
				name, email := acc[0], acc[1]
				row.AccountName, row.AccountEmail = &name, &email
			}
		}
		out = append(out, row)
	}
	return paginate(out, p), len(out), nil
}

func (m *memStore) Stats(_ context.Context, limit int) (model.BookingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st model.BookingStats
	for _, b := range m.sorted(func(model.Booking) bool { return true }) {
		sum := model.BookingSummary{BookingCode: b.BookingCode, Title: b.Show.Title, Status: b.Status}
		if b.Status == model.StatusBooked {
			st.BookedCount++
			if len(st.RecentBooked) < limit {
				st.RecentBooked = append(st.RecentBooked, sum)
			}
		} else {
			st.CancelledCount++
			if len(st.RecentCancelled) < limit {
				st.RecentCancelled = append(st.RecentCancelled, sum)
			}
		}
	}
	return st, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
