package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// Event is dispatched on a node and bubbles through its ancestors.
type Event struct {
	Name          string
	Target        *html.Node
	CurrentTarget *html.Node
	Detail        any
	stopped       bool
}

// StopPropagation prevents the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

// Handler reacts to a dispatched event.
type Handler func(evt *Event)

type subscription struct {
	id      uint64
	handler Handler
}

// EventBus keeps per-node listeners. The zero value is not usable; call
// NewEventBus.
type EventBus struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[*html.Node]map[string][]subscription
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{listeners: make(map[*html.Node]map[string][]subscription)}
}

// On subscribes handler to name events reaching node. The returned function
// removes the subscription.
func (b *EventBus) On(node *html.Node, name string, handler Handler) func() {
	if b == nil || node == nil || name == "" || handler == nil {
		return func() {}
	}
	b.mu.Lock()
	b.next++
	id := b.next
	byName, ok := b.listeners[node]
	if !ok {
		byName = make(map[string][]subscription)
		b.listeners[node] = byName
	}
	byName[name] = append(byName[name], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() { b.off(node, name, id) }
}

func (b *EventBus) off(node *html.Node, name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.listeners[node][name]
	for i, s := range subs {
		if s.id == id {
			b.listeners[node][name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.listeners[node][name]) == 0 {
		delete(b.listeners[node], name)
	}
	if len(b.listeners[node]) == 0 {
		delete(b.listeners, node)
	}
}

// Listeners reports how many handlers are attached to node for name.
func (b *EventBus) Listeners(node *html.Node, name string) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[node][name])
}

// Forget drops every listener registered on node.
func (b *EventBus) Forget(node *html.Node) {
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.listeners, node)
	b.mu.Unlock()
}

// Dispatch delivers an event to target and then to each ancestor until a
// handler stops propagation.
func (b *EventBus) Dispatch(target *html.Node, name string, detail any) *Event {
	evt := &Event{Name: name, Target: target, Detail: detail}
	if b == nil {
		return evt
	}
	for cur := target; cur != nil && !evt.stopped; cur = cur.Parent {
		b.mu.RLock()
		subs := append([]subscription(nil), b.listeners[cur][name]...)
		b.mu.RUnlock()
		evt.CurrentTarget = cur
		for _, s := range subs {
			s.handler(evt)
		}
	}
	return evt
}
