// Package netmon reports device connectivity to the outbox. The queue only
// consumes the notification contract: a current state and change callbacks.
package netmon

import "sync"

// Monitor exposes connectivity state and change notifications. The daemon
// subscribes and triggers a sync pass on every transition to online.
type Monitor interface {
	Online() bool
	Subscribe(fn func(online bool)) (cancel func())
}

// notifier implements the Subscribe half of Monitor and the state flip
// shared by the concrete monitors.
type notifier struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

func newNotifier(online bool) notifier {
	return notifier{online: online, subs: make(map[int]func(bool))}
}

func (n *notifier) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *notifier) Subscribe(fn func(online bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// setOnline flips the state and notifies subscribers. Repeated reports of
// the same state are ignored. Callbacks run without the lock held so a
// subscriber may re-enter the monitor.
func (n *notifier) setOnline(online bool) {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return
	}
	n.online = online
	fns := make([]func(bool), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// ManualMonitor is a Monitor driven by the embedding application, for hosts
// that detect connectivity themselves (and for tests).
type ManualMonitor struct {
	notifier
}

// NewManual creates a manually driven monitor with the given initial state.
func NewManual(online bool) *ManualMonitor {
	return &ManualMonitor{notifier: newNotifier(online)}
}

// SetOnline reports a connectivity transition.
func (m *ManualMonitor) SetOnline(online bool) {
	m.setOnline(online)
}
