// Package event
package event

import (
	"fmt"
	"sync"
)

type Handler func(event any)

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	onPanic func(name string, recovered any)
}

func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// OnPanic installs a hook that receives panics raised by handlers. Without a
// hook the panic is swallowed so one bad subscriber cannot break a publisher.
func (b *Bus) OnPanic(fn func(name string, recovered any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPanic = fn
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish calls every handler of name synchronously, in subscription order.
func (b *Bus) Publish(name string, event any) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[name]...)
	onPanic := b.onPanic
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(name, h, event, onPanic)
	}
}

func (b *Bus) dispatch(name string, h Handler, event any, onPanic func(string, any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(name, fmt.Sprint(r))
		}
	}()
	h(event)
}
