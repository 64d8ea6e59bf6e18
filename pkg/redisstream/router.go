// Package redisstream builds the Redis Streams transport used for turn
// events when Redis is enabled.
package redisstream

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Transport is a publisher/subscriber pair sharing one Redis client.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	client     redis.UniversalClient
}

// Close shuts down both ends and the client. The publisher and subscriber
// may already have closed the shared client.
func (t *Transport) Close() error {
	var firstErr error
	for _, c := range []func() error{t.Publisher.Close, t.Subscriber.Close, t.client.Close} {
		if err := c(); err != nil && !errors.Is(err, redis.ErrClosed) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildTransport connects to Redis and returns a publisher and a consumer
// group subscriber for s.
func BuildTransport(s Settings, logger watermill.LoggerAdapter) (*Transport, error) {
	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, err
	}

	return &Transport{Publisher: pub, Subscriber: sub, client: client}, nil
}

// EnsureGroupAtTail creates the consumer group for a given stream at the tail ($) if it doesn't exist.
// This prevents full historical replay on first subscribe.
func EnsureGroupAtTail(ctx context.Context, addr, stream, group string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		// Ignore BUSYGROUP errors (group already exists)
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return err
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}
