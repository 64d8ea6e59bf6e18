package events

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogHandler writes every turn event to the log. Failures and anomalies are
// logged at warn level, the rest at debug.
func LogHandler() func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()
		e, err := FromJSON(msg.Payload)
		if err != nil {
			log.Error().Err(err).Str("payload", string(msg.Payload)).Msg("Failed to parse event")
			return nil
		}
		level := zerolog.DebugLevel
		if e.Failure != "" || e.Type == TypeAnomaly {
			level = zerolog.WarnLevel
		}
		log.WithLevel(level).
			Str("event", string(e.Type)).
			Str("turn_id", e.TurnID).
			Str("state", e.State).
			Str("source", e.Source).
			Str("outcome", e.Outcome).
			Str("failure", e.Failure).
			Int("messages", e.Messages).
			Msg("turn event")
		return nil
	}
}
