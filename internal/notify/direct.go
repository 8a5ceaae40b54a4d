package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Channel is one delivery medium for booking events.
type Channel interface {
	Notify(ctx context.Context, ev Event) error
}

// Direct delivers an event on every channel in the calling goroutine.
// All channels are attempted; their errors are joined.
type Direct struct {
	channels []Channel
	log      *logrus.Logger
}

// NewDirect returns a dispatcher over the given channels.
func NewDirect(log *logrus.Logger, channels ...Channel) *Direct {
	return &Direct{channels: channels, log: log}
}

func (d *Direct) Dispatch(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	var errs []error
	for _, ch := range d.channels {
		if err := ch.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		d.log.WithFields(logrus.Fields{"booking_id": ev.BookingCode, "type": ev.Type}).WithError(err).Warn("notification delivery failed")
	}
	return err
}
