package search

import "sync"

// OutsideClickSource delivers "clicked outside the widget" events.
// AddHandler returns a function that removes the handler.
type OutsideClickSource interface {
	AddHandler(fn func()) (remove func())
}

// ClickBroadcaster is an OutsideClickSource fed by Click.
type ClickBroadcaster struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func()
}

// AddHandler registers fn.
func (b *ClickBroadcaster) AddHandler(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[int]func())
	}
	id := b.next
	b.next++
	b.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Click invokes every registered handler.
func (b *ClickBroadcaster) Click() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.handlers))
	for _, fn := range b.handlers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len reports the number of registered handlers.
func (b *ClickBroadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
