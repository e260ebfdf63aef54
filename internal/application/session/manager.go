package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
)

var (
	ErrNoIdentity = errors.New("session requires a user id")
	ErrClosed     = errors.New("session closed")
)

// Manager owns every open session, keyed by uid.
type Manager struct {
	deps *Deps
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session

	// background warms
	wg sync.WaitGroup
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     &deps,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// WithClock replaces the clock used for idle tracking and role hints.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Open returns the user's session, creating it at login. A new session is
// warmed in the background; created reports whether this call made it.
func (m *Manager) Open(ctx context.Context, identity security.Identity) (sess *Session, created bool, err error) {
	if identity.UID == "" {
		return nil, false, ErrNoIdentity
	}

	m.mu.Lock()
	if existing, ok := m.sessions[identity.UID]; ok {
		m.mu.Unlock()
		existing.Touch()
		return existing, false, nil
	}
	sess = newSession(identity, m.deps, m.now)
	m.sessions[identity.UID] = sess
	m.mu.Unlock()

	m.deps.Collector.AddSessions(1)
	m.deps.Logger.Auth().Info("Session opened", "uid", logging.MaskID(identity.UID))

	if m.deps.Warming != nil {
		warmCtx := context.WithoutCancel(ctx)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.deps.Warming.Warm(warmCtx, sess)
		}()
	}
	return sess, true, nil
}

// Get returns the open session for uid and marks it active.
func (m *Manager) Get(uid string) (*Session, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[uid]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.Touch()
	return sess, true
}

// Close ends the user's session at logout.
func (m *Manager) Close(uid string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()
	if !ok {
		return false
	}
	sess.Close()
	m.deps.Collector.AddSessions(-1)
	m.deps.Logger.Auth().Info("Session closed", "uid", logging.MaskID(uid))
	return true
}

// CloseIdle closes sessions inactive for longer than ttl and returns how
// many it closed.
func (m *Manager) CloseIdle(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	var idle []*Session
	for uid, sess := range m.sessions {
		if sess.LastActive().Before(cutoff) {
			idle = append(idle, sess)
			delete(m.sessions, uid)
		}
	}
	m.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
		m.deps.Collector.AddSessions(-1)
	}
	if len(idle) > 0 {
		m.deps.Logger.Auth().Info("Idle sessions closed", "count", len(idle))
	}
	return len(idle)
}

// CloseAll closes every session and waits for background warms and
// in-flight remote writes.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range all {
		sess.Close()
		m.deps.Collector.AddSessions(-1)
	}
	for _, sess := range all {
		sess.Tracker().Wait()
	}
	m.wg.Wait()
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Wait blocks until background warms started so far have finished.
func (m *Manager) Wait() { m.wg.Wait() }
