package channel

import (
	"context"
	"sync"
)

const subscriptionBuffer = 16

// MemoryBus delivers envelopes to subscribers inside one process.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string]map[*memorySubscription]struct{}),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, key string, env Envelope) error {
	if key == "" {
		return ErrNoKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs[key] {
		select {
		case s.ch <- env:
		default:
			// subscriber is not draining; one outcome per attempt is all it needs
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, key string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNoKey
	}

	s := &memorySubscription{
		bus: b,
		key: key,
		ch:  make(chan Envelope, subscriptionBuffer),
	}

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[*memorySubscription]struct{})
	}
	b.subs[key][s] = struct{}{}
	b.mu.Unlock()

	return s, nil
}

// Subscribers reports how many listeners are currently attached across all keys.
func (b *MemoryBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

type memorySubscription struct {
	bus  *MemoryBus
	key  string
	ch   chan Envelope
	once sync.Once
}

func (s *memorySubscription) Messages() <-chan Envelope {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()

		delete(s.bus.subs[s.key], s)
		if len(s.bus.subs[s.key]) == 0 {
			delete(s.bus.subs, s.key)
		}
	})
	return nil
}
