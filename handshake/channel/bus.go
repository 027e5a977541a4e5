package channel

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoKey is returned when publishing or subscribing without an attempt key.
var ErrNoKey = errors.New("channel: no attempt key")

// Publisher delivers envelopes to the subscribers of one attempt key. Every
// handshake attempt talks on its own key, the state nonce the gateway issued
// with the authorization URL, so a popup's outcome only reaches the opener
// waiting on that key.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
}

type Subscriber interface {
	// Subscribe returns once the subscription is live. Envelopes published
	// on key after it returns are guaranteed to be delivered to it.
	Subscribe(ctx context.Context, key string) (Subscription, error)
}

type Bus interface {
	Publisher
	Subscriber
}

type Subscription interface {
	Messages() <-chan Envelope
	Close() error
}

// Poster sends messages to the opener of the current context.
type Poster interface {
	Post(ctx context.Context, m Message) error
}

type poster struct {
	pub    Publisher
	origin string
	key    string
}

// NewPoster posts as origin to whoever subscribed on key.
func NewPoster(pub Publisher, origin, key string) Poster {
	return &poster{pub: pub, origin: origin, key: key}
}

func (p *poster) Post(ctx context.Context, m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := p.pub.Publish(ctx, p.key, Envelope{Origin: p.origin, Data: data}); err != nil {
		return fmt.Errorf("post %s: %w", m.Type(), err)
	}
	return nil
}
