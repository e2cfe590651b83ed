package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storygraph/application/ports"
	pkgerrors "storygraph/pkg/errors"
	"storygraph/pkg/observability"
)

// Manager owns the live sessions: creation, lookup and teardown. Each
// session runs its own goroutine until deleted or the manager closes.
type Manager struct {
	source  ports.GraphSource
	logger  *zap.Logger
	metrics *observability.Collector

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session *Session
	cancel  context.CancelFunc
}

// NewManager creates an empty session manager.
func NewManager(source ports.GraphSource, logger *zap.Logger, metrics *observability.Collector) *Manager {
	return &Manager{
		source:   source,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]*managedSession),
	}
}

// Create starts a new view session and returns it.
func (m *Manager) Create(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.ProjectID == "" {
		return nil, pkgerrors.NewValidationError("project id cannot be empty")
	}

	id := uuid.New().String()
	sess := NewSession(id, cfg, m.source, m.logger, m.metrics)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.mu.Lock()
	m.sessions[id] = &managedSession{session: sess, cancel: cancel}
	m.mu.Unlock()

	m.metrics.SessionsCreated.Inc()
	m.metrics.SessionsActive.Inc()

	go func() {
		sess.Run(runCtx)
		m.metrics.SessionsActive.Dec()
	}()

	m.logger.Info("session created",
		zap.String("sessionID", id),
		zap.String("projectID", cfg.ProjectID),
		zap.String("viewMode", cfg.ViewMode),
	)
	return sess, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	ms, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session")
	}
	return ms.session, nil
}

// Delete stops a session and removes it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return pkgerrors.NewNotFoundError("session")
	}

	ms.cancel()
	m.metrics.SessionsClosed.Inc()
	m.logger.Info("session deleted", zap.String("sessionID", id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops every session. Used on server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ms := range m.sessions {
		ms.cancel()
		delete(m.sessions, id)
		m.metrics.SessionsClosed.Inc()
	}
}
