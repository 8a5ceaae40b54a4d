// Package queue moves booking notifications off the request path. A
// publisher serialises notify events onto RabbitMQ or Kafka and a consumer
// hands them to the real delivery channels.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/movie-booking/internal/notify"
)

const contentType = "application/json"

func encode(ev notify.Event) ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

// handle decodes one message body and delivers it. An error means the
// message is unusable or delivery failed; callers drop it either way.
func handle(ctx context.Context, body []byte, d notify.Dispatcher) error {
	var ev notify.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	return d.Dispatch(ctx, ev)
}
