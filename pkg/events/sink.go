package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrSinkFull = errors.New("event sink buffer full")

// Sink accepts events without blocking the caller.
type Sink interface {
	Publish(e Event) error
}

type NopSink struct{}

func (NopSink) Publish(Event) error { return nil }

// WatermillSink buffers events and publishes them on a topic from its own
// goroutine, so publishing from the interactive loop never waits on the
// transport.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
	ch        chan Event

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

var _ Sink = (*WatermillSink)(nil)

func NewWatermillSink(publisher message.Publisher, topic string, buffer int) *WatermillSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
		ch:        make(chan Event, buffer),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Publish enqueues e. It returns ErrSinkFull instead of blocking.
func (s *WatermillSink) Publish(e Event) error {
	select {
	case <-s.closed:
		return errors.New("event sink closed")
	default:
	}
	select {
	case s.ch <- e:
		return nil
	default:
		log.Warn().Str("type", string(e.Type)).Msg("dropping event, sink buffer full")
		return ErrSinkFull
	}
}

// Run forwards queued events until ctx is done or Close is called, then
// drains what is left.
func (s *WatermillSink) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case e := <-s.ch:
			s.forward(e)
		case <-ctx.Done():
			s.drain()
			return nil
		case <-s.closed:
			s.drain()
			return nil
		}
	}
}

// Close stops Run and waits for it to drain. It must only be called after
// Run has been started.
func (s *WatermillSink) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	<-s.done
}

func (s *WatermillSink) drain() {
	for {
		select {
		case e := <-s.ch:
			s.forward(e)
		default:
			return
		}
	}
}

func (s *WatermillSink) forward(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("type", string(e.Type)).Msg("could not encode event")
		return
	}
	msg := message.NewMessage(e.ID.String(), payload)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", s.topic).Msg("could not publish event")
	}
}
