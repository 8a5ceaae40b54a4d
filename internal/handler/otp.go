package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/verification"
)

// PasscodeGate issues and checks one-time passcodes.
type PasscodeGate interface {
	IssuePasscode(ctx context.Context, channel verification.Channel, destination, purpose string) (verification.Receipt, error)
	VerifyPasscode(ctx context.Context, r verification.Receipt, code string) (bool, error)
}

// OTPHandler serves /api/otp. Channels lists the contact channels a
// checkout has to prove; send issues a code on each of them.
type OTPHandler struct {
	gate     PasscodeGate
	channels []verification.Channel
	log      *logrus.Logger
}

func NewOTPHandler(gate PasscodeGate, channels []verification.Channel, log *logrus.Logger) *OTPHandler {
	if len(channels) == 0 {
		channels = []verification.Channel{verification.ChannelEmail}
	}
	return &OTPHandler{gate: gate, channels: channels, log: log}
}

type sendOTPReq struct {
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Purpose string `json:"purpose"`
}

type verifyOTPReq struct {
	Email    string `json:"email"`
	EmailOTP string `json:"email_otp"`
	Phone    string `json:"phone"`
	PhoneOTP string `json:"phone_otp"`
	Purpose  string `json:"purpose"`
}

func destinationFor(ch verification.Channel, email, phone string) string {
	if ch == verification.ChannelPhone {
		return strings.TrimSpace(phone)
	}
	return strings.TrimSpace(email)
}

// Send handles POST /api/otp/send.
func (h *OTPHandler) Send(c echo.Context) error {
	var req sendOTPReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.log, err)
	}
	for _, ch := range h.channels {
		if destinationFor(ch, req.Email, req.Phone) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": string(ch) + " required"})
		}
	}

	receipts := make([]verification.Receipt, 0, len(h.channels))
	for _, ch := range h.channels {
		r, err := h.gate.IssuePasscode(c.Request().Context(), ch, destinationFor(ch, req.Email, req.Phone), req.Purpose)
		if err != nil {
			return writeError(c, h.log, err)
		}
		receipts = append(receipts, r)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent successfully", "receipts": receipts})
}

// Verify handles POST /api/otp/verify. Every configured channel must be
// presented with its code.
func (h *OTPHandler) Verify(c echo.Context) error {
	var req verifyOTPReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.log, err)
	}
	for _, ch := range h.channels {
		code := req.EmailOTP
		if ch == verification.ChannelPhone {
			code = req.PhoneOTP
		}
		dest := destinationFor(ch, req.Email, req.Phone)
		if dest == "" || strings.TrimSpace(code) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": string(ch) + " and its OTP are required"})
		}
		ok, err := h.gate.VerifyPasscode(c.Request().Context(), verification.Receipt{
			Purpose:     req.Purpose,
			Channel:     ch,
			Destination: dest,
		}, strings.TrimSpace(code))
		if err != nil {
			return writeError(c, h.log, err)
		}
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired OTP", "channel": ch})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP verified successfully"})
}
