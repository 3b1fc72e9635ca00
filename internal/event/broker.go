package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/google/uuid"
)

const (
	subscriberBuffer      = 64
	slowSubscriberTimeout = 100 * time.Millisecond
)

// Broker is the broadcast transport: an in-process pub/sub fabric with one
// topic per conversation. Every connection subscribed to a conversation
// receives every event published to it.
type Broker struct {
	topics *haxmap.Map[string, *Topic]
}

func NewBroker() *Broker {
	return &Broker{topics: haxmap.New[string, *Topic]()}
}

func (b *Broker) Topic(id string) *Topic {
	topic, _ := b.topics.GetOrCompute(id, func() *Topic {
		return &Topic{id: id, subs: haxmap.New[string, *Subscription]()}
	})
	return topic
}

// Topic fans events out to its subscriptions.
type Topic struct {
	id   string
	subs *haxmap.Map[string, *Subscription]
}

// Publish delivers the event to every subscriber. A subscriber that cannot
// accept the event within the slow-subscriber timeout is evicted; a stuck
// connection must not stall a generation for everyone else.
func (t *Topic) Publish(e Event) {
	t.subs.ForEach(func(id string, sub *Subscription) bool {
		if sub == nil {
			return true
		}
		select {
		case <-sub.done:
			t.subs.Del(id)
		case sub.ch <- e:
		case <-time.After(slowSubscriberTimeout):
			slog.Warn("Evicting slow subscriber", "topic", t.id, "subscription", id)
			sub.Unsubscribe()
		}
		return true
	})
}

// Subscribe attaches a new subscription to the topic.
func (t *Topic) Subscribe() *Subscription {
	id := uuid.NewString()
	sub := &Subscription{
		id:      id,
		ch:      make(chan Event, subscriberBuffer),
		done:    make(chan struct{}),
		onClose: func() { t.subs.Del(id) },
	}
	t.subs.Set(id, sub)
	return sub
}

// Subscription is one consumer's view of a topic. The delivery channel is
// never closed; consumers select on Done alongside Events.
type Subscription struct {
	id        string
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func (s *Subscription) ID() string { return s.id }

// Events returns the subscription's delivery channel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Done is closed when the subscription is torn down.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.onClose()
		close(s.done)
	})
}
