package eventbus

import (
	"context"
	"fmt"
	"sync"

	applogger "FinDash/pkg/logger"
)

// Name identifies an event variant.
type Name string

// Event is implemented by every typed event variant.
type Event interface {
	EventName() Name
}

// Handler reacts to a published event.
type Handler func(ctx context.Context, evt Event) error

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id   uint64
	name Name
	all  bool
}

type entry struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous in-process publish/subscribe bus.
// Handlers for one name run in registration order; a failing handler does not stop the others.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Name][]entry
	all    []entry
	logger *applogger.Logger
	onFail func(name Name)
}

// Option configures Bus.
type Option func(*Bus)

// WithLogger sets the logger used for handler failures.
func WithLogger(l *applogger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithFailureHook is called once per failed handler invocation.
func WithFailureHook(fn func(name Name)) Option {
	return func(b *Bus) { b.onFail = fn }
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[Name][]entry),
		logger: applogger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for events named name.
func (b *Bus) Subscribe(name Name, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[name] = append(b.subs[name], entry{id: b.nextID, handler: handler})
	return Subscription{id: b.nextID, name: name}
}

// SubscribeAll registers handler for every event. Such handlers run after the named ones.
func (b *Bus) SubscribeAll(handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.all = append(b.all, entry{id: b.nextID, handler: handler})
	return Subscription{id: b.nextID, all: true}
}

// Unsubscribe removes a subscription. Unknown handles are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.all {
		b.all = without(b.all, sub.id)
		return
	}
	rest := without(b.subs[sub.name], sub.id)
	if len(rest) == 0 {
		delete(b.subs, sub.name)
		return
	}
	b.subs[sub.name] = rest
}

// Publish delivers evt to its handlers and returns once all of them ran.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	name := evt.EventName()

	b.mu.RLock()
	named := b.subs[name]
	handlers := make([]entry, 0, len(named)+len(b.all))
	handlers = append(handlers, named...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := b.invoke(ctx, h.handler, evt); err != nil {
			b.logger.Warn("eventbus handler failed",
				applogger.String("event", string(name)),
				applogger.Error(err),
			)
			if b.onFail != nil {
				b.onFail(name)
			}
		}
	}
}

// HandlerCount returns the number of handlers subscribed to name, excluding SubscribeAll ones.
func (b *Bus) HandlerCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

func (b *Bus) invoke(ctx context.Context, h Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, evt)
}

func without(entries []entry, id uint64) []entry {
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}
