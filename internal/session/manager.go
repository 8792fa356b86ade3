package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"certflow/internal/common/config"
	"certflow/internal/common/database"
	"certflow/internal/common/logger"
	"certflow/internal/common/metrics"

	"github.com/google/uuid"
)

// Manager creates sessions, keeps the live ones in memory and writes every
// change through to the Store.
type Manager struct {
	def    Definition
	deps   Deps
	store  Store
	logger logger.Logger
	newID  func() string

	mu   sync.Mutex
	live map[string]*Session
}

type ManagerOption func(*Manager)

// WithIDGenerator replaces the uuid generator, mostly for tests.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) { m.newID = fn }
}

func NewManager(def Definition, deps Deps, store Store, opts ...ManagerOption) *Manager {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if store == nil {
		store = NewMemoryStore(0)
	}
	m := &Manager{
		def:    def,
		deps:   deps,
		store:  store,
		logger: deps.Logger,
		newID:  uuid.NewString,
		live:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a new session on the first step.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	s, err := New(m.newID(), m.def, m.deps)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, s.Snapshot()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	m.mu.Lock()
	m.live[s.ID()] = s
	metrics.SessionsActive.Set(float64(len(m.live)))
	m.mu.Unlock()

	m.logger.Info("session started", map[string]interface{}{"sessionId": s.ID()})
	return s, nil
}

// Get returns the live session or restores it from the store.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.live[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	snap, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	s, err = Restore(snap, m.def, m.deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.live[id]; ok {
		return existing, nil
	}
	m.live[id] = s
	metrics.SessionsActive.Set(float64(len(m.live)))
	return s, nil
}

// Save writes the session's current snapshot through to the store.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if err := m.store.Save(ctx, s.Snapshot()); err != nil {
		m.logger.Error("failed to persist session", map[string]interface{}{
			"sessionId": s.ID(),
			"error":     err,
		})
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	return nil
}

// Delete forgets the session everywhere.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.live, id)
	metrics.SessionsActive.Set(float64(len(m.live)))
	m.mu.Unlock()
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	return nil
}

// Evict drops live sessions untouched for longer than idle. They can still be
// restored from the store. Sessions with a command in progress are kept.
func (m *Manager) Evict(idle time.Duration) int {
	now := time.Now
	if m.deps.Now != nil {
		now = m.deps.Now
	}
	cutoff := now().Add(-idle)

	m.mu.Lock()
	candidates := make(map[string]*Session, len(m.live))
	for id, s := range m.live {
		candidates[id] = s
	}
	m.mu.Unlock()

	var stale []string
	for id, s := range candidates {
		if !s.Busy() && s.UpdatedAt().Before(cutoff) {
			stale = append(stale, id)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range stale {
		if s, ok := m.live[id]; ok && s == candidates[id] && !s.Busy() {
			delete(m.live, id)
			n++
		}
	}
	metrics.SessionsActive.Set(float64(len(m.live)))
	return n
}

// NewStore builds the configured store. The returned closer releases any
// connection it opened.
func NewStore(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	ttl := time.Duration(cfg.Session.TTL) * time.Second
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		client, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return NewRedisStore(client, cfg.Session.KeyPrefix, ttl), client.Close, nil
	default:
		return NewMemoryStore(ttl), func() error { return nil }, nil
	}
}
