// Package verification issues and checks one-time passcodes that prove a
// buyer controls an email address or phone number. Every passcode lives
// under its own (purpose, channel, destination) key.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Channel is a contact medium a passcode can be delivered over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// PurposeCheckout is the purpose used by the booking flow.
const PurposeCheckout = "checkout"

var (
	// ErrUnknownChannel is returned for channels other than email and phone.
	ErrUnknownChannel = errors.New("unknown verification channel")
	// ErrNoSender is returned when no sender is registered for a channel.
	ErrNoSender = errors.New("no sender configured for channel")
	// ErrInvalidDestination is returned for empty or malformed destinations.
	ErrInvalidDestination = errors.New("invalid destination")
	// errNoRecord is what stores return for a missing or expired key.
	errNoRecord = errors.New("no passcode record")
)

// ParseChannel validates a raw channel name.
func ParseChannel(raw string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(raw))); c {
	case ChannelEmail, ChannelPhone:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, raw)
}

// Key identifies one passcode slot.
type Key struct {
	Purpose     string
	Channel     Channel
	Destination string
}

func (k Key) String() string {
	return k.Purpose + ":" + string(k.Channel) + ":" + k.Destination
}

// NormalizeDestination canonicalizes an address so the same inbox or
// handset always maps to the same key: emails are trimmed and lower-cased,
// phone numbers keep only their digits.
func NormalizeDestination(ch Channel, raw string) (string, error) {
	switch ch {
	case ChannelEmail:
		d := strings.ToLower(strings.TrimSpace(raw))
		if at := strings.IndexByte(d, '@'); at <= 0 || at == len(d)-1 {
			return "", fmt.Errorf("%w: %q", ErrInvalidDestination, raw)
		}
		return d, nil
	case ChannelPhone:
		var b strings.Builder
		for _, r := range raw {
			if unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() < 7 {
			return "", fmt.Errorf("%w: %q", ErrInvalidDestination, raw)
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
}

// Record is the state kept for one key. Until verification it holds the
// hash of the outstanding code; afterwards Verified is set and the hash is
// cleared so the code cannot be replayed.
type Record struct {
	CodeHash  string    `json:"code_hash,omitempty"`
	Attempts  int       `json:"attempts"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps passcode records with an expiry. Get and Attempt report
// errNoRecord for a missing or expired key. Attempt increments the
// record's attempt counter in one atomic step, keeps its expiry and
// returns the updated record.
type Store interface {
	Put(ctx context.Context, key Key, rec Record, ttl time.Duration) error
	Get(ctx context.Context, key Key) (Record, error)
	Attempt(ctx context.Context, key Key) (Record, error)
	Delete(ctx context.Context, key Key) error
}
