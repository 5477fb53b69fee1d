package notify

import (
	"context"
	"sync"
	"time"

	"auction-house/utils"
)

const defaultSubscriberBuffer = 16

// Hub is an in-process publisher that hands events to local subscribers,
// such as the server-sent event streams.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Envelope]struct{} // key: channel
	buffer int
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[chan Envelope]struct{}),
		buffer: defaultSubscriberBuffer,
	}
}

// Subscribe returns a stream of events published to channel and a function
// that ends the subscription and closes the stream. After Close the stream
// is returned already closed.
func (h *Hub) Subscribe(channel string) (<-chan Envelope, func()) {
	ch := make(chan Envelope, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[chan Envelope]struct{})
	}
	h.subs[channel][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[channel][ch]; !ok {
			return // already cancelled or closed by Close
		}
		delete(h.subs[channel], ch)
		if len(h.subs[channel]) == 0 {
			delete(h.subs, channel)
		}
		close(ch)
	}
	return ch, cancel
}

// Close ends every subscription, so open event streams return. Later
// publishes reach nobody.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for channel, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, channel)
	}
}

// Subscribers returns the number of live subscriptions on channel
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, channel, event string, payload any) error {
	env := Envelope{Channel: channel, Event: event, Payload: payload, PublishedAt: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[channel] {
		select {
		case ch <- env:
		default:
			utils.Warn("hub: subscriber too slow, event dropped", map[string]any{
				"channel": channel,
				"event":   event,
			})
		}
	}
	return nil
}
