package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewBookingCode returns a human-readable booking reference: "MB", the
// creation time in milliseconds as upper-case base36, and four random
// base36 characters.
func NewBookingCode(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString("MB")
	b.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < 4; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String(), nil
}

// RandomDigits returns a uniformly random decimal code of the given
// length whose first digit is never zero.
func RandomDigits(length int) (string, error) {
	if length < 1 {
		length = 1
	}
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Mul(lo, big.NewInt(9))
	if length == 1 {
		lo, span = big.NewInt(0), big.NewInt(10)
	}
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return n.Add(n, lo).String(), nil
}
