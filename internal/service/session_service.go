package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSessionIDLength = 128

// Session is the editing state of one client: its lifecycle controller and
// alert sidebar. Events for a session run one at a time under its lock.
type Session struct {
	ID         string
	Controller *LifecycleController
	Alerts     *AlertState

	mu       sync.Mutex
	lastSeen time.Time
}

// SessionService is the registry of live sessions.
type SessionService struct {
	deps    LifecycleDeps
	alerts  *AlertService
	metrics *MetricsService
	logger  *zap.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionService constructs the registry. Each new session gets its own
// controller built from deps.
func NewSessionService(deps LifecycleDeps, alerts *AlertService, metrics *MetricsService, idleTTL time.Duration, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	return &SessionService{
		deps:     deps,
		alerts:   alerts,
		metrics:  metrics,
		logger:   logger,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the session for id, creating it when unknown. A blank or
// oversized id gets a fresh one. The returned id must be echoed to the client.
func (s *SessionService) Acquire(ctx context.Context, id string) *Session {
	if id == "" || len(id) > maxSessionIDLength {
		id = uuid.NewString()
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{
			ID:         id,
			Controller: NewLifecycleController(s.deps),
			Alerts:     NewAlertState(),
		}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		s.metrics.SetActiveSessions(count)
		s.logger.Debug("session opened", zap.String("session_id", id))
		sess.Do(func(sess *Session) {
			sess.Controller.Refresh(ctx)
			sess.Alerts.Ensure(s.alerts)
		})
	}
	return sess
}

// Do runs fn while holding the session lock.
func (sess *Session) Do(fn func(*Session)) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	fn(sess)
}

// Close drops a session. It reports whether one existed.
func (s *SessionService) Close(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()
	if ok {
		s.metrics.SetActiveSessions(count)
	}
	return ok
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the configured TTL.
func (s *SessionService) Sweep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(count)
	if removed > 0 {
		s.logger.Info("idle sessions swept", zap.Int("removed", removed), zap.Int("active", count))
	}
	return nil
}
