package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const ChannelPrefix = "oauth:channel:"

// ChannelName is the Redis channel an attempt with key talks on.
func ChannelName(origin, key string) string {
	return ChannelPrefix + origin + ":" + key
}

// RedisBus carries envelopes over Redis Pub/Sub so that the popup callback and
// the opener can live in different processes.
type RedisBus struct {
	client *redis.Client
	origin string
	logger *slog.Logger
}

func NewRedisBus(client *redis.Client, origin string, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{
		client: client,
		origin: origin,
		logger: logger,
	}
}

func (b *RedisBus) Publish(ctx context.Context, key string, env Envelope) error {
	if key == "" {
		return ErrNoKey
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return b.client.Publish(ctx, ChannelName(b.origin, key), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, key string) (Subscription, error) {
	if key == "" {
		return nil, ErrNoKey
	}
	name := ChannelName(b.origin, key)
	ps := b.client.Subscribe(ctx, name)

	// wait for the subscribe confirmation so nothing published afterwards is lost
	reply, err := ps.Receive(ctx)
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}
	if _, ok := reply.(*redis.Subscription); !ok {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: unexpected reply %T", name, reply)
	}

	sub := &redisSubscription{
		ps:     ps,
		out:    make(chan Envelope, subscriptionBuffer),
		done:   make(chan struct{}),
		logger: b.logger,
	}
	go sub.pump()

	return sub, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	out    chan Envelope
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (s *redisSubscription) pump() {
	defer close(s.out)

	for msg := range s.ps.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			s.logger.Debug("dropping undecodable envelope", slog.String("channel", msg.Channel), slog.Any("err", err))
			continue
		}
		select {
		case s.out <- env:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan Envelope {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
