// Package notification fans balance changes out to live subscribers.
//
// A Broker owns an in-process Hub and an optional Transport. Publishing
// goes through the transport (redis pub/sub or postgres NOTIFY) so that a
// change made by any process reaches subscribers attached to every other
// process; Run pumps the transport back into the local Hub.
package notification

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const subscriptionBuffer = 16

// BalanceEvent announces the balance of a wallet after a committed change.
// Version is the wallet version that change produced; it orders events for
// one wallet no matter which process published them.
type BalanceEvent struct {
	UserID  string    `json:"user_id"`
	Balance int64     `json:"balance"`
	Delta   int64     `json:"delta"`
	OrderID string    `json:"order_id,omitempty"`
	Version int64     `json:"version"`
	At      time.Time `json:"at"`
}

// Handler receives events for one subscription. A returned error is
// logged; it never cancels the subscription.
type Handler func(BalanceEvent) error

// Hub is the per-process registry of subscriptions keyed by user id.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*Subscription)}
}

// Subscribe registers handler for userID. The caller owns the returned
// subscription and must Close it.
func (h *Hub) Subscribe(userID string, handler Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:      h.nextID,
		userID:  userID,
		hub:     h,
		handler: handler,
		events:  make(chan BalanceEvent, subscriptionBuffer),
		done:    make(chan struct{}),
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[uint64]*Subscription)
	}
	h.subs[userID][sub.id] = sub

	go sub.run()
	return sub
}

// Dispatch hands evt to every subscription of evt.UserID without blocking.
func (h *Hub) Dispatch(evt BalanceEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[evt.UserID] {
		sub.enqueue(evt)
	}
}

// Count returns the number of live subscriptions for userID.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[sub.userID]
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.subs, sub.userID)
	}
}

// Subscription is one registered observer. Close is the disposer.
type Subscription struct {
	id      uint64
	userID  string
	hub     *Hub
	handler Handler
	events  chan BalanceEvent
	done    chan struct{}
	once    sync.Once

	// owned by run
	seen        bool
	lastVersion int64
}

// UserID returns the observed wallet.
func (s *Subscription) UserID() string { return s.userID }

// Done is closed once the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Push queues evt for this subscription only.
func (s *Subscription) Push(evt BalanceEvent) {
	s.enqueue(evt)
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

// enqueue never blocks the publisher: when the buffer is full the oldest
// queued event is dropped, since only the latest balance matters.
func (s *Subscription) enqueue(evt BalanceEvent) {
	select {
	case s.events <- evt:
		return
	default:
	}
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- evt:
	default:
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.events:
			if s.seen && evt.Version <= s.lastVersion {
				continue
			}
			s.seen = true
			s.lastVersion = evt.Version
			s.deliver(evt)
		}
	}
}

func (s *Subscription) deliver(evt BalanceEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": s.userID,
				"panic":   r,
			}).Error("balance subscriber panicked")
		}
	}()

	if err := s.handler(evt); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": s.userID,
			"balance": evt.Balance,
			"error":   err.Error(),
		}).Warn("balance delivery failed")
	}
}
