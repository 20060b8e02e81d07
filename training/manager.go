package training

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fedgovio/fedgov/config"
	"github.com/fedgovio/fedgov/governance"
	"github.com/fedgovio/fedgov/internal/metrics"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 📒 Session registry
// =============================================================================

// Manager is the process-wide registry of active training sessions,
// keyed by configuration id. It implements governance.SessionNotifier:
// every accepted configuration spawns a session. State is in-memory
// only, a restart loses all in-flight sessions.
type Manager struct {
	governance *governance.Service
	launcher   Launcher
	cfg        config.TrainingConfig
	metrics    *metrics.Collector
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates an empty session registry.
func NewManager(svc *governance.Service, launcher Launcher, cfg config.TrainingConfig, logger *zap.Logger) *Manager {
	return &Manager{
		governance: svc,
		launcher:   launcher,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "training_manager")),
		sessions:   make(map[uuid.UUID]*Session),
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(c *metrics.Collector) *Manager {
	m.metrics = c
	return m
}

// OnConfigurationAccepted spawns a training session for a configuration
// that just won its tally.
func (m *Manager) OnConfigurationAccepted(ctx context.Context, cfg types.Configuration) error {
	_, err := m.Create(ctx, cfg)
	return err
}

// Create resolves a configuration's governance links into a session spec
// and registers the session. Creating a session twice for the same
// configuration conflicts.
func (m *Manager) Create(ctx context.Context, cfg types.Configuration) (*Session, error) {
	m.mu.RLock()
	_, exists := m.sessions[cfg.ID]
	count := len(m.sessions)
	m.mu.RUnlock()
	if exists {
		return nil, types.ConflictError(types.ErrSessionAlreadyExists,
			"training session for configuration %s already exists", cfg.ID)
	}
	if m.cfg.MaxSessions > 0 && count >= m.cfg.MaxSessions {
		return nil, types.ConflictError(types.ErrSessionAlreadyExists,
			"session limit of %d reached", m.cfg.MaxSessions)
	}

	spec, err := m.buildSpec(ctx, cfg)
	if err != nil {
		return nil, err
	}

	session := NewSession(spec, m.launcher, m.logger).
		WithMetrics(m.metrics).
		OnTerminate(func() { m.Remove(cfg.ID) })

	m.mu.Lock()
	if _, raced := m.sessions[cfg.ID]; raced {
		m.mu.Unlock()
		return nil, types.ConflictError(types.ErrSessionAlreadyExists,
			"training session for configuration %s already exists", cfg.ID)
	}
	m.sessions[cfg.ID] = session
	active := len(m.sessions)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetActiveSessions(active)
	}
	m.logger.Info("training session created",
		zap.String("configuration", cfg.ID.String()),
		zap.Int("participants", len(spec.Members)),
		zap.Int("search_rounds", spec.SearchRounds))
	return session, nil
}

// Get returns the session for a configuration id.
func (m *Manager) Get(configurationID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[configurationID]
	if !ok {
		return nil, types.NotFoundError(types.ErrSessionNotFound,
			"no training session for configuration %s", configurationID)
	}
	return session, nil
}

// List returns all active sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Remove evicts a session from the registry.
func (m *Manager) Remove(configurationID uuid.UUID) {
	m.mu.Lock()
	_, ok := m.sessions[configurationID]
	delete(m.sessions, configurationID)
	active := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	if m.metrics != nil {
		m.metrics.SetActiveSessions(active)
	}
	m.logger.Info("training session removed",
		zap.String("configuration", configurationID.String()))
}

// Shutdown disconnects every session's participants and stops running
// workers.
func (m *Manager) Shutdown(ctx context.Context) error {
	sessions := m.List()

	g, _ := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			s.Close("server shutting down")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetActiveSessions(0)
	}
	return nil
}

// buildSpec loads the entities an accepted configuration links and
// assembles the session spec.
func (m *Manager) buildSpec(ctx context.Context, cfg types.Configuration) (SessionSpec, error) {
	if cfg.StrategyLinked == nil {
		return SessionSpec{}, types.ValidationError(types.ErrInvalidRequest,
			"configuration %s is not linked to a strategy", cfg.ID)
	}
	strategy, err := m.governance.GetStrategy(ctx, *cfg.StrategyLinked)
	if err != nil {
		return SessionSpec{}, err
	}
	group, err := m.governance.GetGroup(ctx, strategy.BelongingGroup)
	if err != nil {
		return SessionSpec{}, err
	}
	dataset, err := m.governance.GetDataset(ctx, cfg.DatasetID, cfg.DatasetVersion)
	if err != nil {
		return SessionSpec{}, err
	}
	model, err := m.governance.GetMLModel(ctx, cfg.MLModelID, cfg.MLModelVersion)
	if err != nil {
		return SessionSpec{}, err
	}
	requirements, err := m.governance.QualityRequirementsFor(ctx, strategy)
	if err != nil {
		return SessionSpec{}, err
	}

	connectionIP := fmt.Sprintf("%s:%d", m.cfg.AdvertiseAddress, m.cfg.AggregationPort)
	spec, err := BuildSessionSpec(cfg, strategy, group, dataset, model, requirements, connectionIP)
	if err != nil {
		return SessionSpec{}, types.ValidationError(types.ErrInvalidRequest, "%v", err)
	}
	spec.ComputeShapley = m.cfg.ComputeShapley
	return spec, nil
}
