// Package bus provides an in-process implementation of domain.SignalBus. It
// carries the same market events as the Redis bus and is used when Redis is
// not configured, where a single engine process feeds its own websocket hub.
package bus

import (
	"context"
	"sync"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// subscriberBuffer is the channel capacity per subscription. Slow subscribers
// drop messages rather than stalling publishers.
const subscriberBuffer = 128

// Memory is a process-local publish/subscribe bus.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan []byte)}
}

// Publish delivers payload to every current subscriber of channel. Delivery
// is best-effort: a subscriber whose buffer is full misses the message.
func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscription on channel. The returned channel is
// closed and the subscription removed when ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)

	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()

		m.mu.Lock()
		subs := m.subs[channel]
		for i, c := range subs {
			if c == ch {
				m.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*Memory)(nil)
