// Package repository defines the MySQL data access layer and the sentinel
// errors it reports. Handlers and services compare against these values
// with errors.Is to pick a response.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write hits a uniqueness constraint that
// has no more specific error below.
var ErrConflict = errors.New("conflict")

// ErrAlreadyCancelled is returned when cancelling a booking whose status
// is no longer Booked.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// ErrSeatConflict is returned when one of the requested seats is already
// held by another booking for the same show.
var ErrSeatConflict = errors.New("seat already booked for this show")

// ErrDuplicateCode is returned when a generated booking code collides with
// an existing one. Callers regenerate and retry.
var ErrDuplicateCode = errors.New("duplicate booking code")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

const mysqlDuplicateEntry = 1062

// duplicateKey reports the index name of a duplicate-entry error, or ""
// when err is not one.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	// message: Duplicate entry '...' for key 'table.index'
	msg := me.Message
	if i := strings.LastIndex(msg, "for key '"); i >= 0 {
		key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
		if j := strings.LastIndex(key, "."); j >= 0 {
			key = key[j+1:]
		}
		return key, true
	}
	return "", true
}
