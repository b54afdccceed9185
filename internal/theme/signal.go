package theme

import (
	"sync"
	"sync/atomic"
)

// Signal reports the host's light/dark preference and its changes.
//
// Subscribe returns a cancel func that is safe to call more than once.
// Listeners may be notified redundantly with an unchanged value.
type Signal interface {
	PrefersDark() bool
	Subscribe(fn func(dark bool)) (cancel func())
}

type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(bool)
}

func (l *listeners) add(fn func(bool)) func() {
	l.mu.Lock()
	if l.fns == nil {
		l.fns = map[int]func(bool){}
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) notify(dark bool) {
	l.mu.Lock()
	snapshot := make([]func(bool), 0, len(l.fns))
	for _, fn := range l.fns {
		snapshot = append(snapshot, fn)
	}
	l.mu.Unlock()
	for _, fn := range snapshot {
		fn(dark)
	}
}

func (l *listeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

// ValueSignal holds a preference that changes only through Set. SSH sessions
// use it with the client's detected background.
type ValueSignal struct {
	dark atomic.Bool
	subs listeners
}

func NewValueSignal(dark bool) *ValueSignal {
	s := &ValueSignal{}
	s.dark.Store(dark)
	return s
}

func (s *ValueSignal) PrefersDark() bool { return s.dark.Load() }

func (s *ValueSignal) Subscribe(fn func(bool)) func() { return s.subs.add(fn) }

// Set records the preference and notifies every listener, even when the value
// is unchanged.
func (s *ValueSignal) Set(dark bool) {
	s.dark.Store(dark)
	s.subs.notify(dark)
}

// Listeners reports how many subscriptions are active.
func (s *ValueSignal) Listeners() int { return s.subs.count() }
