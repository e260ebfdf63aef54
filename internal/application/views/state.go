// Package views keeps per-session, in-memory views of remote resources. A
// view serves the cached copy first, then replaces it with fresh data from
// a one-shot fetch or a live subscription, and writes every change back to
// the session cache.
package views

import (
	"sync"
	"time"
)

// State is the observable state of one view.
type State[T any] struct {
	Data      T         `json:"data"`
	HasData   bool      `json:"hasData"`
	Loading   bool      `json:"loading"`
	FromCache bool      `json:"fromCache"`
	Err       error     `json:"-"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *State[T]) setErr(err error) {
	s.Err = err
	s.Error = ""
	if err != nil {
		s.Error = err.Error()
	}
}

// Resource is what a session publishes over the live websocket.
type Resource interface {
	Snapshot() any
	OnChange(fn func()) (remove func())
	Close()
}

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (l *listeners) add(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) fire() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
