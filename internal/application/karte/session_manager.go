package karte

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SessionFactory builds a session for the given identity
type SessionFactory func(sctx SessionContext) *Session

type managedSession struct {
	session  *Session
	lastUsed time.Time
}

// SessionManager keeps the editing sessions of the HTTP layer, keyed by a
// random id, and expires the ones left idle.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*managedSession
	factory  SessionFactory
	idle     time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSessionManager creates a manager. Sessions unused for longer than idle
// are removed by Sweep.
func NewSessionManager(factory SessionFactory, idle time.Duration, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*managedSession),
		factory:  factory,
		idle:     idle,
		now:      time.Now,
		logger:   logger,
	}
}

// Open starts a session for author holding a new record
func (m *SessionManager) Open(ctx context.Context, author string) (*Session, error) {
	sctx := SessionContext{SessionID: uuid.NewString(), Author: author}
	s := m.factory(sctx)
	if _, err := s.CreateNew(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sctx.SessionID] = &managedSession{session: s, lastUsed: m.now()}
	m.mu.Unlock()

	m.logger.Info("Editing session opened",
		zap.String("session_id", sctx.SessionID),
		zap.String("author", author),
	)
	return s, nil
}

// Get returns the session id and marks it as used
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, shared.NewNotFoundError("session", id)
	}
	ms.lastUsed = m.now()
	return ms.session, nil
}

// Close removes the session id. Closing an unknown session is not an error.
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.logger.Info("Editing session closed", zap.String("session_id", id))
	}
}

// Len returns the number of open sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes idle sessions and returns how many were removed. Unsaved
// edits in those sessions are discarded.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idle)
	removed := 0
	for id, ms := range m.sessions {
		if ms.lastUsed.Before(cutoff) {
			if ms.session.Snapshot().State == karte.StateModified {
				m.logger.Warn("Expiring session with unsaved edits", zap.String("session_id", id))
			}
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("Expired idle sessions", zap.Int("count", removed))
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
