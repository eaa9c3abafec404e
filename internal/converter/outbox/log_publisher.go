package outbox

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log. It stands in for a broker when none
// is configured, so the outbox still drains.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "event_log").Logger()}
}

func (p *LogPublisher) Publish(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := p.logger.Info().Str("key", key)
	if json.Valid(value) {
		ev = ev.RawJSON("event", value)
	} else {
		ev = ev.Bytes("event", value)
	}
	ev.Msg("session event")
	return nil
}
