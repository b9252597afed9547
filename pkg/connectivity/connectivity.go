// Package connectivity models the host's online/offline signal as a
// subscription the sync engine registers against.
package connectivity

import "sync"

// Monitor reports the current connectivity state and notifies subscribers
// on transitions.
type Monitor interface {
	Online() bool
	// Subscribe registers fn for transition events and returns a function
	// that removes the subscription.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Publisher is a Monitor whose state is pushed by the caller. Subscribers are
// notified only when the state actually changes.
type Publisher struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

// NewPublisher creates a publisher with the given initial state.
func NewPublisher(online bool) *Publisher {
	return &Publisher{
		online: online,
		subs:   make(map[int]func(bool)),
	}
}

// Online returns the last published state.
func (p *Publisher) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Subscribe implements Monitor.
func (p *Publisher) Subscribe(fn func(online bool)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Set publishes a new state. It reports whether a transition happened.
// Subscribers run synchronously, outside the publisher's lock.
func (p *Publisher) Set(online bool) bool {
	p.mu.Lock()
	if p.online == online {
		p.mu.Unlock()
		return false
	}
	p.online = online
	subs := make([]func(bool), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
	return true
}
