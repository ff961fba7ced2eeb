// Package notify provides the observer list used to publish configuration
// reload events.
//
// Delivery is synchronous and follows subscription order. A failing observer
// (returned error or panic) is logged and skipped; the remaining observers
// still run and the publisher never sees the failure.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
)

// Observer is called for every published event.
type Observer[T any] func(event T) error

// Subscription represents an active observer subscription.
type Subscription struct {
	id      uint64
	release func(id uint64)
	once    sync.Once
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.release == nil {
		return
	}
	s.once.Do(func() { s.release(s.id) })
}

// Close implements io.Closer so a subscription can be owned as a resource.
func (s *Subscription) Close() error {
	s.Unsubscribe()
	return nil
}

type entry[T any] struct {
	id       uint64
	observer Observer[T]
}

// Notifier manages subscriptions for one event topic.
type Notifier[T any] struct {
	mu sync.RWMutex

	topic     string
	logger    *slog.Logger
	observers []entry[T]
	nextID    uint64
	closed    bool
}

// Option configures a Notifier.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report observer failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a Notifier for topic.
func New[T any](topic string, opts ...Option) *Notifier[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Notifier[T]{
		topic:  topic,
		logger: o.logger,
	}
}

// Topic returns the topic name.
func (n *Notifier[T]) Topic() string {
	return n.topic
}

// Subscribe registers an observer. Subscribing to a closed notifier returns a
// subscription that never fires.
func (n *Notifier[T]) Subscribe(observer Observer[T]) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed || observer == nil {
		return &Subscription{}
	}

	id := n.nextID
	n.nextID++
	n.observers = append(n.observers, entry[T]{id: id, observer: observer})

	return &Subscription{id: id, release: n.unsubscribe}
}

// Len returns the number of active subscriptions.
func (n *Notifier[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// Notify delivers event to every observer, in subscription order.
// It returns the number of observers that failed.
func (n *Notifier[T]) Notify(event T) int {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return 0
	}
	observers := make([]entry[T], len(n.observers))
	copy(observers, n.observers)
	n.mu.RUnlock()

	failed := 0
	for _, e := range observers {
		if err := n.deliver(e.observer, event); err != nil {
			failed++
			n.logger.Error("observer failed",
				"topic", n.topic,
				"subscription", e.id,
				"error", err,
			)
		}
	}
	return failed
}

// Close detaches every observer. It is safe to call Close multiple times.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	n.observers = nil
}

// deliver calls one observer, turning a panic into an error.
func (n *Notifier[T]) deliver(observer Observer[T], event T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return observer(event)
}

// unsubscribe removes an observer by ID.
func (n *Notifier[T]) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, e := range n.observers {
		if e.id == id {
			n.observers = append(n.observers[:i:i], n.observers[i+1:]...)
			return
		}
	}
}
