package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/utils"
)

const (
	// DefaultTTL is how long an issued passcode stays valid.
	DefaultTTL = 5 * time.Minute
	// DefaultVerifiedTTL is how long a successful verification is honoured.
	DefaultVerifiedTTL = 15 * time.Minute
	// DefaultMaxAttempts bounds wrong guesses per issued passcode.
	DefaultMaxAttempts = 5

	codeLength = 6
)

// Sender delivers a passcode to a destination.
type Sender interface {
	SendPasscode(ctx context.Context, destination, code string, ttl time.Duration) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, destination, code string, ttl time.Duration) error

func (f SenderFunc) SendPasscode(ctx context.Context, destination, code string, ttl time.Duration) error {
	return f(ctx, destination, code, ttl)
}

// Receipt is returned when a passcode is issued. It names the slot the
// code was stored under and is what a later verification must present.
type Receipt struct {
	Purpose     string    `json:"purpose"`
	Channel     Channel   `json:"channel"`
	Destination string    `json:"destination"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Options tunes a Gate. Zero fields take the package defaults.
type Options struct {
	TTL         time.Duration
	VerifiedTTL time.Duration
	MaxAttempts int
}

// Gate issues and checks passcodes scoped to (purpose, channel,
// destination). A code issued for one destination never verifies another.
type Gate struct {
	store   Store
	senders map[Channel]Sender
	opts    Options
	log     *logrus.Logger
	newCode func() (string, error)
}

// NewGate builds a Gate over store. Senders are looked up by channel when
// a passcode is issued.
func NewGate(store Store, senders map[Channel]Sender, opts Options, log *logrus.Logger) *Gate {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.VerifiedTTL <= 0 {
		opts.VerifiedTTL = DefaultVerifiedTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gate{
		store:   store,
		senders: senders,
		opts:    opts,
		log:     log,
		newCode: func() (string, error) { return utils.RandomDigits(codeLength) },
	}
}

func (g *Gate) key(channel Channel, destination, purpose string) (Key, error) {
	if _, err := ParseChannel(string(channel)); err != nil {
		return Key{}, err
	}
	dest, err := NormalizeDestination(channel, destination)
	if err != nil {
		return Key{}, err
	}
	if purpose == "" {
		purpose = PurposeCheckout
	}
	return Key{Purpose: purpose, Channel: channel, Destination: dest}, nil
}

// IssuePasscode generates a fresh code for the destination, replacing any
// outstanding one, and hands it to the channel's sender. The code is only
// stored as a hash.
func (g *Gate) IssuePasscode(ctx context.Context, channel Channel, destination, purpose string) (Receipt, error) {
	k, err := g.key(channel, destination, purpose)
	if err != nil {
		return Receipt{}, err
	}
	sender, ok := g.senders[k.Channel]
	if !ok || sender == nil {
		return Receipt{}, fmt.Errorf("%w: %s", ErrNoSender, k.Channel)
	}

	code, err := g.newCode()
	if err != nil {
		return Receipt{}, fmt.Errorf("generate passcode: %w", err)
	}
	if err := g.store.Put(ctx, k, Record{CodeHash: hashCode(k, code)}, g.opts.TTL); err != nil {
		return Receipt{}, fmt.Errorf("store passcode: %w", err)
	}
	if err := sender.SendPasscode(ctx, k.Destination, code, g.opts.TTL); err != nil {
		_ = g.store.Delete(ctx, k)
		return Receipt{}, fmt.Errorf("send passcode: %w", err)
	}

	g.log.WithFields(logrus.Fields{"channel": k.Channel, "purpose": k.Purpose}).Info("passcode issued")
	return Receipt{
		Purpose:     k.Purpose,
		Channel:     k.Channel,
		Destination: k.Destination,
		ExpiresAt:   time.Now().Add(g.opts.TTL).UTC(),
	}, nil
}

// VerifyPasscode checks code against the slot named by the receipt. It
// returns false for a wrong, expired or exhausted code. Every call uses up
// one attempt before the comparison, so concurrent guesses never get more
// than MaxAttempts tries. On success the slot is marked verified for the
// verified TTL and the code is consumed.
func (g *Gate) VerifyPasscode(ctx context.Context, r Receipt, code string) (bool, error) {
	k, err := g.key(r.Channel, r.Destination, r.Purpose)
	if err != nil {
		return false, err
	}
	rec, err := g.store.Attempt(ctx, k)
	if errors.Is(err, errNoRecord) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record attempt: %w", err)
	}
	if rec.Verified || rec.CodeHash == "" || rec.Attempts > g.opts.MaxAttempts {
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(rec.CodeHash), []byte(hashCode(k, code))) != 1 {
		g.log.WithFields(logrus.Fields{"channel": k.Channel, "attempts": rec.Attempts}).Warn("passcode mismatch")
		return false, nil
	}

	if err := g.store.Put(ctx, k, Record{Verified: true}, g.opts.VerifiedTTL); err != nil {
		return false, fmt.Errorf("mark verified: %w", err)
	}
	return true, nil
}

// IsVerified reports whether the destination passed verification for the
// purpose within the verified TTL.
func (g *Gate) IsVerified(ctx context.Context, channel Channel, destination, purpose string) (bool, error) {
	k, err := g.key(channel, destination, purpose)
	if err != nil {
		return false, err
	}
	rec, err := g.store.Get(ctx, k)
	if errors.Is(err, errNoRecord) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Verified, nil
}

// hashCode binds the code to its key so a stored hash is useless for any
// other destination.
func hashCode(k Key, code string) string {
	return utils.SHA256Hex(k.String() + "|" + code)
}
