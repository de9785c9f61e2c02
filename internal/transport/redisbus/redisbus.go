// Package redisbus fans broadcast frames out across server instances. Every
// instance publishes to Redis and relays what it hears into its local hub.
package redisbus

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/transport/ws"
)

const ChannelPrefix = "dm:user:"

// Connect parses a redis:// URL (or bare host:port) and pings the server.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

// Publisher implements the service publisher over Redis pub/sub.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, channelID, event string, payload any) error {
	frame, err := ws.Encode(event, channelID, payload)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, ChannelPrefix+channelID, frame).Err(); err != nil {
		return errors.Wrapf(err, "redis publish %s", event)
	}
	return nil
}

// Deliverer accepts an encoded frame for a channel. *ws.Hub satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, channelID string, frame []byte) error
}

// Relay feeds frames from Redis into the local hub.
type Relay struct {
	rdb   *redis.Client
	out   Deliverer
	ready chan struct{}
	log   *zap.Logger
}

func NewRelay(rdb *redis.Client, out Deliverer, log *zap.Logger) *Relay {
	return &Relay{
		rdb:   rdb,
		out:   out,
		ready: make(chan struct{}),
		log:   log.With(zap.String("component", "redis_relay")),
	}
}

// Ready is closed once the subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run relays until ctx is cancelled. A failed delivery is logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "redis psubscribe")
	}
	close(r.ready)
	r.log.Info("relay subscribed", zap.String("pattern", ChannelPrefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			channelID := strings.TrimPrefix(msg.Channel, ChannelPrefix)
			if err := r.out.Deliver(ctx, channelID, []byte(msg.Payload)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Warn("deliver relayed frame", zap.String("channel", channelID), zap.Error(err))
			}
		}
	}
}
