package service

import "errors"

// ErrValidation is returned when booking input is malformed. The wrapped
// message names the offending field.
var ErrValidation = errors.New("validation failed")

// ErrContactNotVerified is returned when checkout requires a verified
// contact and the buyer has not completed the passcode check.
var ErrContactNotVerified = errors.New("contact not verified")
