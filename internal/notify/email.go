package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// mailer is the part of *gomail.Dialer the sender needs.
type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSettings configures the email channel.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether enough is set to reach an SMTP server.
func (s SMTPSettings) Configured() bool { return s.Host != "" && s.Username != "" }

// EmailSender renders booking events and passcodes into mail and sends
// them over SMTP.
type EmailSender struct {
	dialer  mailer
	from    string
	log     *logrus.Logger
	devEcho bool
}

// NewEmailSender returns a sender for the given SMTP settings. Without
// settings every send is skipped; with devEcho set, skipped passcodes are
// written to the log so local sign-ups still work.
func NewEmailSender(s SMTPSettings, log *logrus.Logger, devEcho bool) *EmailSender {
	e := &EmailSender{from: s.From, log: log, devEcho: devEcho}
	if s.Configured() {
		e.dialer = gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	}
	return e
}

type emailView struct {
	BookingCode string
	MovieTitle  string
	Seats       string
	ShowTime    string
	Total       string
	Refund      string
}

// Notify sends the confirmation or cancellation mail for ev. Events
// without an email address are ignored.
func (e *EmailSender) Notify(_ context.Context, ev Event) error {
	if ev.Email == "" {
		return nil
	}
	if e.dialer == nil {
		e.log.WithField("booking_id", ev.BookingCode).Debug("email not configured, skipping notification")
		return nil
	}

	name, subject := "booking_confirmed.html", "Booking Confirmed - "+ev.MovieTitle
	if ev.Type == BookingCancelled {
		name, subject = "booking_cancelled.html", "Booking Cancelled - "+ev.MovieTitle
	}
	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, name, emailView{
		BookingCode: ev.BookingCode,
		MovieTitle:  ev.MovieTitle,
		Seats:       ev.SeatList(),
		ShowTime:    ev.ShowTime,
		Total:       FormatRupees(ev.GrandTotalCents),
		Refund:      FormatRupees(ev.RefundCents),
	}); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", ev.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())
	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// SendPasscode mails a one-time passcode.
func (e *EmailSender) SendPasscode(_ context.Context, destination, code string, ttl time.Duration) error {
	if e.dialer == nil {
		if e.devEcho {
			e.log.WithFields(logrus.Fields{"to": destination, "code": code}).Warn("email not configured, passcode echoed to log")
			return nil
		}
		return fmt.Errorf("send passcode: email credentials not configured")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", "Your Movie Booking OTP")
	m.SetBody("text/plain", fmt.Sprintf("Your OTP is %s. It is valid for %d minutes.", code, int(ttl.Minutes())))
	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send passcode: %w", err)
	}
	return nil
}
