package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/novachat/pkg/logging"
	"github.com/go-go-golems/novachat/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Router owns the transport for turn events and the handlers consuming them.
type Router struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	logger     watermill.LoggerAdapter
	closers    []func() error
}

type RouterOption func(*Router)

func WithPublisher(p message.Publisher) RouterOption {
	return func(r *Router) { r.Publisher = p }
}

func WithSubscriber(s message.Subscriber) RouterOption {
	return func(r *Router) { r.Subscriber = s }
}

// NewRouter builds a router. Without options it uses an in-memory
// go channel pub/sub.
func NewRouter(opts ...RouterOption) (*Router, error) {
	r := &Router{logger: logging.NewWatermill(log.Logger)}
	for _, o := range opts {
		o(r)
	}
	if r.Publisher == nil || r.Subscriber == nil {
		goch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, r.logger)
		if r.Publisher == nil {
			r.Publisher = goch
		}
		if r.Subscriber == nil {
			r.Subscriber = goch
		}
		r.closers = append(r.closers, goch.Close)
	}
	mr, err := message.NewRouter(message.RouterConfig{}, r.logger)
	if err != nil {
		return nil, errors.Wrap(err, "could not create message router")
	}
	r.router = mr
	return r, nil
}

// BuildRouter returns a Redis Streams backed router when s is enabled and
// an in-memory one otherwise.
func BuildRouter(ctx context.Context, s redisstream.Settings, topic string) (*Router, error) {
	if !s.Enabled {
		return NewRouter()
	}
	logger := logging.NewWatermill(log.Logger)
	if err := redisstream.EnsureGroupAtTail(ctx, s.Addr, topic, s.Group); err != nil {
		return nil, errors.Wrap(err, "could not create consumer group")
	}
	t, err := redisstream.BuildTransport(s, logger)
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to redis")
	}
	r, err := NewRouter(WithPublisher(t.Publisher), WithSubscriber(t.Subscriber))
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	r.closers = append(r.closers, t.Close)
	return r, nil
}

func (r *Router) AddHandler(name, topic string, f func(msg *message.Message) error) {
	r.router.AddNoPublisherHandler(name, topic, r.Subscriber, f)
}

// Run blocks until ctx is done or the router is closed.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) Close() error {
	var firstErr error
	if err := r.router.Close(); err != nil {
		firstErr = err
	}
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
