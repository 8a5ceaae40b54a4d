package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// SMSSettings configures the HTTP SMS gateway.
type SMSSettings struct {
	URL     string
	APIKey  string
	Sender  string
	Timeout time.Duration
}

// SMSSender posts messages to an HTTP SMS gateway.
type SMSSender struct {
	cfg     SMSSettings
	client  *http.Client
	log     *logrus.Logger
	devEcho bool
}

// NewSMSSender returns a sender for the gateway in s.
func NewSMSSender(s SMSSettings, log *logrus.Logger, devEcho bool) *SMSSender {
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}
	return &SMSSender{cfg: s, client: &http.Client{Timeout: s.Timeout}, log: log, devEcho: devEcho}
}

func (s *SMSSender) configured() bool { return s.cfg.URL != "" && s.cfg.APIKey != "" }

type smsRequest struct {
	Route    string `json:"route"`
	Sender   string `json:"sender_id,omitempty"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Numbers  string `json:"numbers"`
}

// ConfirmationText is the SMS body for a booking event.
func ConfirmationText(ev Event) string {
	if ev.Type == BookingCancelled {
		return fmt.Sprintf("Your booking %s for %s at %s is cancelled. Refund: ₹%s.",
			ev.BookingCode, ev.MovieTitle, ev.ShowTime, FormatRupees(ev.RefundCents))
	}
	return fmt.Sprintf("Your ticket for %s at %s is confirmed. Seats: %s. Booking ID: %s. Total: ₹%s. Enjoy your show!",
		ev.MovieTitle, ev.ShowTime, ev.SeatList(), ev.BookingCode, FormatRupees(ev.GrandTotalCents))
}

// Notify texts the buyer. Events without a phone number are ignored.
func (s *SMSSender) Notify(ctx context.Context, ev Event) error {
	if ev.Phone == "" {
		return nil
	}
	if !s.configured() {
		s.log.WithField("booking_id", ev.BookingCode).Debug("sms not configured, skipping notification")
		return nil
	}
	return s.send(ctx, ev.Phone, ConfirmationText(ev))
}

// SendPasscode texts a one-time passcode.
func (s *SMSSender) SendPasscode(ctx context.Context, destination, code string, ttl time.Duration) error {
	if !s.configured() {
		if s.devEcho {
			s.log.WithFields(logrus.Fields{"to": destination, "code": code}).Warn("sms not configured, passcode echoed to log")
			return nil
		}
		return fmt.Errorf("send passcode: sms gateway not configured")
	}
	return s.send(ctx, destination, fmt.Sprintf("Your MovieBook OTP is %s. It is valid for %d minutes.", code, int(ttl.Minutes())))
}

func (s *SMSSender) send(ctx context.Context, number, text string) error {
	body, err := json.Marshal(smsRequest{
		Route:    "q",
		Sender:   s.cfg.Sender,
		Message:  text,
		Language: "english",
		Numbers:  number,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
