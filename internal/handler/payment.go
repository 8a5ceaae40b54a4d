package handler

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/notify"
)

// PaymentHandler serves the mock payment endpoints. No money moves: process
// always succeeds and upi-qr only renders a payment intent.
type PaymentHandler struct {
	payee  string
	name   string
	qrSize int
	log    *logrus.Logger
	now    func() time.Time
}

func NewPaymentHandler(payeeVPA, payeeName string, qrSize int, log *logrus.Logger) *PaymentHandler {
	if qrSize < 64 || qrSize > 1024 {
		qrSize = 256
	}
	return &PaymentHandler{payee: payeeVPA, name: payeeName, qrSize: qrSize, log: log, now: time.Now}
}

type processPaymentReq struct {
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Method      string `json:"method"`
}

// Process handles POST /api/payment/process.
func (h *PaymentHandler) Process(c echo.Context) error {
	var req processPaymentReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.log, err)
	}
	method, ok := model.ParsePaymentMethod(req.Method)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "unsupported payment method"})
	}
	txn := "TXN" + strconv.FormatInt(h.now().UnixMilli(), 10)
	h.log.WithFields(logrus.Fields{"transaction_id": txn, "amount": req.AmountCents, "method": method}).Info("mock payment accepted")
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"message":        fmt.Sprintf("Payment of ₹%s via %s successful", notify.FormatRupees(req.AmountCents), method),
		"transaction_id": txn,
	})
}

// upiURI builds the upi://pay deep link for an amount.
func (h *PaymentHandler) upiURI(amountCents int64, note string) string {
	q := url.Values{}
	q.Set("pa", h.payee)
	q.Set("pn", h.name)
	q.Set("am", fmt.Sprintf("%d.%02d", amountCents/100, amountCents%100))
	q.Set("cu", "INR")
	if note != "" {
		q.Set("tn", note)
	}
	return "upi://pay?" + q.Encode()
}

// UPIQR handles GET /api/payment/upi-qr?amount_cents=&note= and returns a
// PNG QR code of the UPI payment link.
func (h *PaymentHandler) UPIQR(c echo.Context) error {
	amount, err := strconv.ParseInt(c.QueryParam("amount_cents"), 10, 64)
	if err != nil || amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must be a positive integer"})
	}
	qr, err := qrcode.New(h.upiURI(amount, c.QueryParam("note")), qrcode.Medium)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(h.qrSize)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}
