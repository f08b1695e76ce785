// Package events fans fetch progress out to Server-Sent Events clients.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

const subscriberBufSize = 256

// Message is one encoded event ready to be written to a stream.
type Message struct {
	Type    string
	Payload string
}

// Broker fans out messages to all subscribed SSE clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Message
	nextID      atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan Message)}
}

// Subscribe registers a new client. Slow consumers have messages dropped.
func (b *Broker) Subscribe() (int64, <-chan Message) {
	id := b.nextID.Add(1)
	ch := make(chan Message, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends msg to every subscriber without blocking.
func (b *Broker) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Observe implements fetcher.Observer.
func (b *Broker) Observe(ev fetcher.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to encode fetch event", "error", err, "type", ev.Type)
		return
	}
	b.Publish(Message{Type: ev.Type, Payload: string(data)})
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
