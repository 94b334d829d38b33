package limits

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Invalidator carries "limits changed for user" events between instances.
// Publish matches subscription.Notifier so an Invalidator can be handed to
// the subscription service directly.
type Invalidator interface {
	Publish(ctx context.Context, userID uuid.UUID) error
	// Subscribe returns a channel of user IDs that is closed when ctx is
	// cancelled or the invalidator shuts down.
	Subscribe(ctx context.Context) (<-chan uuid.UUID, error)
}

// MemoryInvalidator fans events out to in-process subscribers.
// A subscriber whose buffer is full misses the event instead of blocking
// the publisher. All methods are safe for concurrent use.
type MemoryInvalidator struct {
	mu          sync.RWMutex
	subscribers map[chan uuid.UUID]struct{}
	bufferSize  int
	closed      bool
	done        chan struct{}
	cleanupWg   sync.WaitGroup
}

// NewMemoryInvalidator creates an in-process invalidator.
// A minimum buffer size of 1 is enforced.
func NewMemoryInvalidator(bufferSize int) *MemoryInvalidator {
	return &MemoryInvalidator{
		subscribers: make(map[chan uuid.UUID]struct{}),
		bufferSize:  max(bufferSize, 1),
		done:        make(chan struct{}),
	}
}

func (m *MemoryInvalidator) Subscribe(ctx context.Context) (<-chan uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrInvalidatorClosed
	}

	ch := make(chan uuid.UUID, m.bufferSize)
	m.subscribers[ch] = struct{}{}

	if ctx.Done() != nil {
		m.cleanupWg.Add(1)
		go func() {
			defer m.cleanupWg.Done()
			select {
			case <-ctx.Done():
				m.unsubscribe(ch)
			case <-m.done:
			}
		}()
	}

	return ch, nil
}

func (m *MemoryInvalidator) Publish(ctx context.Context, userID uuid.UUID) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrInvalidatorClosed
	}

	for ch := range m.subscribers {
		select {
		case ch <- userID:
		default:
		}
	}
	return nil
}

// Close closes every subscriber channel. It is safe to call more than once.
func (m *MemoryInvalidator) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	for ch := range m.subscribers {
		close(ch)
	}
	clear(m.subscribers)
	m.mu.Unlock()

	m.cleanupWg.Wait()
	return nil
}

func (m *MemoryInvalidator) unsubscribe(ch chan uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscribers[ch]; ok {
		delete(m.subscribers, ch)
		close(ch)
	}
}
