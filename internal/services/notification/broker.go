package notification

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Transport carries balance events between processes.
type Transport interface {
	Publish(ctx context.Context, evt BalanceEvent) error
	// Listen blocks, calling deliver for every received event, until ctx is
	// done or the connection fails.
	Listen(ctx context.Context, deliver func(BalanceEvent)) error
}

// Broker publishes balance events and serves local subscriptions.
type Broker struct {
	hub       *Hub
	transport Transport
}

// NewBroker creates a broker. A nil transport keeps everything in process.
func NewBroker(hub *Hub, transport Transport) *Broker {
	if hub == nil {
		hub = NewHub()
	}
	return &Broker{hub: hub, transport: transport}
}

func (b *Broker) Publish(ctx context.Context, evt BalanceEvent) error {
	if b.transport == nil {
		b.hub.Dispatch(evt)
		return nil
	}
	return b.transport.Publish(ctx, evt)
}

func (b *Broker) Subscribe(userID string, handler Handler) *Subscription {
	return b.hub.Subscribe(userID, handler)
}

// Hub returns the local subscription registry.
func (b *Broker) Hub() *Hub { return b.hub }

// Run pumps the transport into the hub until ctx is done, reconnecting
// with a capped backoff.
func (b *Broker) Run(ctx context.Context) {
	if b.transport == nil {
		<-ctx.Done()
		return
	}

	backoff := time.Second
	for {
		err := b.transport.Listen(ctx, b.hub.Dispatch)
		if ctx.Err() != nil {
			return
		}
		logrus.WithField("error", err).Warn("balance feed disconnected, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// LocalTransport is an in-process transport for single-instance
// deployments. Publish blocks only when the queue is full and nobody is
// listening.
type LocalTransport struct {
	queue chan BalanceEvent
}

func NewLocalTransport(size int) *LocalTransport {
	if size <= 0 {
		size = 256
	}
	return &LocalTransport{queue: make(chan BalanceEvent, size)}
}

func (t *LocalTransport) Publish(ctx context.Context, evt BalanceEvent) error {
	select {
	case t.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *LocalTransport) Listen(ctx context.Context, deliver func(BalanceEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-t.queue:
			deliver(evt)
		}
	}
}
