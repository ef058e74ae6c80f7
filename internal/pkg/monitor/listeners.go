package monitor

import "sync"

// Handler receives the payload of a condition.
type Handler func(Event)

// Registration identifies a registered handler so it can be removed.
type Registration struct {
	cond Condition
	id   uint64
}

// Condition returns the condition the handler is registered for.
func (r Registration) Condition() Condition {
	return r.cond
}

type listener struct {
	id      uint64
	handler Handler
}

// listeners is the discrete-event delivery channel: handlers per condition,
// kept in registration order.
type listeners struct {
	mu     sync.RWMutex
	nextID uint64
	byCond map[Condition][]listener
}

func newListeners() *listeners {
	return &listeners{byCond: make(map[Condition][]listener)}
}

func (l *listeners) add(cond Condition, h Handler) Registration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	l.byCond[cond] = append(l.byCond[cond], listener{id: l.nextID, handler: h})
	return Registration{cond: cond, id: l.nextID}
}

func (l *listeners) remove(r Registration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.byCond[r.cond]
	for i, ln := range list {
		if ln.id == r.id {
			// Copy so a delivery iterating the old slice is unaffected
			next := make([]listener, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(l.byCond, r.cond)
			} else {
				l.byCond[r.cond] = next
			}
			return true
		}
	}
	return false
}

// handlers returns the handlers for cond as of now. Handlers registered
// during a delivery see the next event, not the current one.
func (l *listeners) handlers(cond Condition) []listener {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byCond[cond][:len(l.byCond[cond]):len(l.byCond[cond])]
}

func (l *listeners) count(cond Condition) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byCond[cond])
}

// deliver calls each handler for ev. A non-nil live is checked before every
// call; deliver reports false if it stopped early.
func (l *listeners) deliver(ev Event, live func() bool) bool {
	for _, ln := range l.handlers(ev.Type) {
		if live != nil && !live() {
			return false
		}
		ln.handler(ev)
	}
	return true
}
