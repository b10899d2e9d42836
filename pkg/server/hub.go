package server

import (
	"sync"
)

// Broadcaster fans messages out to connected websocket clients. A client
// that cannot keep up misses messages rather than blocking the sender.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int]chan Message
	next        int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[int]chan Message),
	}
}

// Register creates a channel for a new client and returns its id.
func (b *Broadcaster) Register() (int, chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	ch := make(chan Message, 64)
	b.subscribers[b.next] = ch
	return b.next, ch
}

// Unregister closes and forgets the client's channel.
func (b *Broadcaster) Unregister(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// SendTo sends msg to one client.
func (b *Broadcaster) SendTo(id int, msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if ch, ok := b.subscribers[id]; ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Broadcast sends msg to every client.
func (b *Broadcaster) Broadcast(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
