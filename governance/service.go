// Package governance implements the proposal, voting and tally workflows
// that govern groups, strategies, datasets, ML models, configurations and
// quality requirements.
package governance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/internal/cache"
	"github.com/fedgovio/fedgov/internal/metrics"
	"github.com/fedgovio/fedgov/internal/store"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🏛️ Governance service
// =============================================================================

// SessionNotifier is told when a configuration proposal wins its tally so
// a training session can be prepared for the new configuration.
type SessionNotifier interface {
	OnConfigurationAccepted(ctx context.Context, cfg types.Configuration) error
}

// Service orchestrates governance workflows over the document store.
type Service struct {
	store    *store.Store
	cache    *cache.Manager // nil when caching is disabled
	cacheTTL time.Duration
	metrics  *metrics.Collector // nil in tests
	recorder Recorder
	notifier SessionNotifier // nil when training is not wired
	logger   *zap.Logger
}

// NewService creates the governance service. Cache, metrics and the
// session notifier are optional collaborators attached via the With
// methods.
func NewService(st *store.Store, rec Recorder, logger *zap.Logger) *Service {
	return &Service{
		store:    st,
		cacheTTL: 5 * time.Minute,
		recorder: rec,
		logger:   logger.With(zap.String("component", "governance")),
	}
}

// WithCache attaches a read-through cache for current entity versions.
func (s *Service) WithCache(c *cache.Manager, ttl time.Duration) *Service {
	s.cache = c
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

// WithMetrics attaches the metrics collector.
func (s *Service) WithMetrics(m *metrics.Collector) *Service {
	s.metrics = m
	return s
}

// WithNotifier attaches the training session notifier.
func (s *Service) WithNotifier(n SessionNotifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) record(ctx context.Context, rec Record) {
	if s.recorder == nil {
		return
	}
	if rec.Actor == uuid.Nil {
		if member, ok := types.MemberID(ctx); ok {
			if id, err := uuid.Parse(member); err == nil {
				rec.Actor = id
			}
		}
	}
	s.recorder.Record(ctx, rec)
}

// =============================================================================
// 🎯 Groups
// =============================================================================

// CreateGroup creates a new group with an empty roster.
func (s *Service) CreateGroup(ctx context.Context, add types.AddGroup) (*types.Group, error) {
	if add.Name == "" {
		return nil, types.ValidationError(types.ErrInvalidRequest, "group name is required")
	}
	group := &types.Group{
		GovernanceMeta: types.NewGovernanceMeta(),
		AddGroup:       add,
		Strategies:     []uuid.UUID{},
		Members:        []uuid.UUID{},
	}
	doc, err := store.NewVersioned(store.KindGroup, group.GovernanceMeta, group)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode group").WithCause(err)
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, types.NewError(types.ErrInternalError, "store group").WithCause(err)
	}
	s.record(ctx, Record{Operation: "create_group", Kind: string(store.KindGroup),
		GovernanceID: group.GovernanceID, Version: group.Version})
	return group, nil
}

// GetGroup loads the current version of a group.
func (s *Service) GetGroup(ctx context.Context, governanceID uuid.UUID) (*types.Group, error) {
	var group types.Group
	if err := s.getCurrent(ctx, store.KindGroup, governanceID, &group); err != nil {
		return nil, notFoundOr(err, types.ErrGroupNotFound, "group %s not found", governanceID)
	}
	return &group, nil
}

// ListGroups returns all current groups.
func (s *Service) ListGroups(ctx context.Context) ([]types.Group, error) {
	docs, err := s.store.ListCurrent(ctx, store.KindGroup)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "list groups").WithCause(err)
	}
	groups := make([]types.Group, 0, len(docs))
	for i := range docs {
		var g types.Group
		if err := docs[i].Decode(&g); err != nil {
			return nil, types.NewError(types.ErrInternalError, "decode group").WithCause(err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// AddGroupMember adds a member to the group roster, bumping the group
// version. Adding a member twice is a no-op returning the current group.
func (s *Service) AddGroupMember(ctx context.Context, governanceID, member uuid.UUID) (*types.Group, error) {
	group, err := s.GetGroup(ctx, governanceID)
	if err != nil {
		return nil, err
	}
	if group.HasMember(member) {
		return group, nil
	}
	group.Members = append(group.Members, member)
	if err := s.insertVersion(ctx, store.KindGroup, &group.GovernanceMeta, group); err != nil {
		return nil, err
	}
	s.record(ctx, Record{Operation: "add_group_member", Kind: string(store.KindGroup),
		GovernanceID: group.GovernanceID, Version: group.Version, Actor: member})
	return group, nil
}

// =============================================================================
// 🎯 Strategies
// =============================================================================

// CreateStrategy creates a strategy under an existing group and links it
// into the group's strategy list.
func (s *Service) CreateStrategy(ctx context.Context, add types.AddStrategy) (*types.Strategy, error) {
	if add.Name == "" {
		return nil, types.ValidationError(types.ErrInvalidRequest, "strategy name is required")
	}
	group, err := s.GetGroup(ctx, add.BelongingGroup)
	if err != nil {
		return nil, err
	}

	strategy := &types.Strategy{
		GovernanceMeta:              types.NewGovernanceMeta(),
		AddStrategy:                 add,
		QualityRequirements:         []uuid.UUID{},
		QualityRequirementProposals: []uuid.UUID{},
		Configurations:              []uuid.UUID{},
		ConfigurationProposals:      []uuid.UUID{},
	}
	doc, err := store.NewVersioned(store.KindStrategy, strategy.GovernanceMeta, strategy)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode strategy").WithCause(err)
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, types.NewError(types.ErrInternalError, "store strategy").WithCause(err)
	}

	group.Strategies = append(group.Strategies, strategy.GovernanceID)
	if err := s.insertVersion(ctx, store.KindGroup, &group.GovernanceMeta, group); err != nil {
		return nil, err
	}

	s.record(ctx, Record{Operation: "create_strategy", Kind: string(store.KindStrategy),
		GovernanceID: strategy.GovernanceID, Version: strategy.Version})
	return strategy, nil
}

// GetStrategy loads the current version of a strategy.
func (s *Service) GetStrategy(ctx context.Context, governanceID uuid.UUID) (*types.Strategy, error) {
	var strategy types.Strategy
	if err := s.getCurrent(ctx, store.KindStrategy, governanceID, &strategy); err != nil {
		return nil, notFoundOr(err, types.ErrStrategyNotFound, "strategy %s not found", governanceID)
	}
	return &strategy, nil
}

// ListStrategies returns all current strategies.
func (s *Service) ListStrategies(ctx context.Context) ([]types.Strategy, error) {
	docs, err := s.store.ListCurrent(ctx, store.KindStrategy)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "list strategies").WithCause(err)
	}
	strategies := make([]types.Strategy, 0, len(docs))
	for i := range docs {
		var st types.Strategy
		if err := docs[i].Decode(&st); err != nil {
			return nil, types.NewError(types.ErrInternalError, "decode strategy").WithCause(err)
		}
		strategies = append(strategies, st)
	}
	return strategies, nil
}

// =============================================================================
// 🎯 Datasets and ML models
// =============================================================================

// CreateDataset registers a dataset schema under a strategy.
func (s *Service) CreateDataset(ctx context.Context, add types.AddDataset) (*types.Dataset, error) {
	if add.Name == "" {
		return nil, types.ValidationError(types.ErrInvalidRequest, "dataset name is required")
	}
	if _, err := s.GetStrategy(ctx, add.StrategyGovernanceID); err != nil {
		return nil, err
	}
	dataset := &types.Dataset{
		GovernanceMeta: types.NewGovernanceMeta(),
		AddDataset:     add,
	}
	doc, err := store.NewVersioned(store.KindDataset, dataset.GovernanceMeta, dataset)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode dataset").WithCause(err)
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, types.NewError(types.ErrInternalError, "store dataset").WithCause(err)
	}
	s.record(ctx, Record{Operation: "create_dataset", Kind: string(store.KindDataset),
		GovernanceID: dataset.GovernanceID, Version: dataset.Version})
	return dataset, nil
}

// GetDataset loads a dataset, the current version when version is 0.
func (s *Service) GetDataset(ctx context.Context, governanceID uuid.UUID, version int) (*types.Dataset, error) {
	var dataset types.Dataset
	var err error
	if version > 0 {
		err = s.store.GetVersion(ctx, store.KindDataset, governanceID, version, &dataset)
	} else {
		err = s.getCurrent(ctx, store.KindDataset, governanceID, &dataset)
	}
	if err != nil {
		return nil, notFoundOr(err, types.ErrDatasetNotFound, "dataset %s v%d not found", governanceID, version)
	}
	return &dataset, nil
}

// CreateMLModel registers a model definition under a strategy. An empty
// hyperparameter list is filled with the family's default search space.
func (s *Service) CreateMLModel(ctx context.Context, add types.AddMLModel) (*types.MLModel, error) {
	if add.Name == "" {
		return nil, types.ValidationError(types.ErrInvalidRequest, "ml model name is required")
	}
	switch add.Model.Algorithm {
	case types.AlgorithmMLP, types.AlgorithmXGBoost, types.AlgorithmCustom:
	default:
		return nil, types.ValidationError(types.ErrInvalidRequest, "unknown algorithm %q", add.Model.Algorithm)
	}
	if _, err := s.GetStrategy(ctx, add.StrategyGovernanceID); err != nil {
		return nil, err
	}
	if len(add.Model.Hyperparameters) == 0 {
		add.Model.Hyperparameters = types.DefaultHyperparameters(add.Model.Algorithm)
	}
	model := &types.MLModel{
		GovernanceMeta: types.NewGovernanceMeta(),
		AddMLModel:     add,
	}
	doc, err := store.NewVersioned(store.KindMLModel, model.GovernanceMeta, model)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode ml model").WithCause(err)
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, types.NewError(types.ErrInternalError, "store ml model").WithCause(err)
	}
	s.record(ctx, Record{Operation: "create_ml_model", Kind: string(store.KindMLModel),
		GovernanceID: model.GovernanceID, Version: model.Version})
	return model, nil
}

// GetMLModel loads a model, the current version when version is 0.
func (s *Service) GetMLModel(ctx context.Context, governanceID uuid.UUID, version int) (*types.MLModel, error) {
	var model types.MLModel
	var err error
	if version > 0 {
		err = s.store.GetVersion(ctx, store.KindMLModel, governanceID, version, &model)
	} else {
		err = s.getCurrent(ctx, store.KindMLModel, governanceID, &model)
	}
	if err != nil {
		return nil, notFoundOr(err, types.ErrMLModelNotFound, "ml model %s v%d not found", governanceID, version)
	}
	return &model, nil
}

// GetConfiguration loads an accepted configuration.
func (s *Service) GetConfiguration(ctx context.Context, id uuid.UUID) (*types.Configuration, error) {
	var cfg types.Configuration
	if err := s.store.Get(ctx, store.KindConfiguration, id, &cfg); err != nil {
		return nil, notFoundOr(err, types.ErrConfigurationNotFound, "configuration %s not found", id)
	}
	return &cfg, nil
}

// GetQualityRequirement loads an accepted quality requirement.
func (s *Service) GetQualityRequirement(ctx context.Context, id uuid.UUID) (*types.QualityRequirement, error) {
	var qr types.QualityRequirement
	if err := s.store.Get(ctx, store.KindQualityRequirement, id, &qr); err != nil {
		return nil, notFoundOr(err, types.ErrQualityRequirementNotFound, "quality requirement %s not found", id)
	}
	return &qr, nil
}

// QualityRequirementsFor loads the accepted quality requirements of a
// strategy.
func (s *Service) QualityRequirementsFor(ctx context.Context, strategy *types.Strategy) ([]types.QualityRequirement, error) {
	docs, err := s.store.ListByIDs(ctx, store.KindQualityRequirement, strategy.QualityRequirements)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "list quality requirements").WithCause(err)
	}
	reqs := make([]types.QualityRequirement, 0, len(docs))
	for i := range docs {
		var qr types.QualityRequirement
		if err := docs[i].Decode(&qr); err != nil {
			return nil, types.NewError(types.ErrInternalError, "decode quality requirement").WithCause(err)
		}
		reqs = append(reqs, qr)
	}
	return reqs, nil
}

// =============================================================================
// 🔧 Store helpers
// =============================================================================

// getCurrent loads the current version of a governed object, consulting
// the cache first when one is attached.
func (s *Service) getCurrent(ctx context.Context, kind store.Kind, governanceID uuid.UUID, out any) error {
	key := cache.EntityKey(string(kind), governanceID.String())
	if s.cache != nil {
		if err := s.cache.GetJSON(ctx, key, out); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheHit("entity")
			}
			return nil
		} else if !cache.IsCacheMiss(err) {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss("entity")
		}
	}
	if err := s.store.GetCurrent(ctx, kind, governanceID, out); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, out, s.cacheTTL); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// insertVersion advances a governed object to its next version and
// invalidates the cached current version.
func (s *Service) insertVersion(ctx context.Context, kind store.Kind, meta *types.GovernanceMeta, payload any) error {
	next := meta.NextVersion()
	*meta = next
	doc, err := store.NewVersioned(kind, next, payload)
	if err != nil {
		return types.NewError(types.ErrInternalError, "encode "+string(kind)).WithCause(err)
	}
	if err := s.store.InsertVersion(ctx, next.GovernanceID, doc); err != nil {
		return types.NewError(types.ErrInternalError, "version "+string(kind)).WithCause(err)
	}
	s.invalidate(ctx, kind, next.GovernanceID)
	return nil
}

// invalidate drops the cached current version of a governed object.
func (s *Service) invalidate(ctx context.Context, kind store.Kind, governanceID uuid.UUID) {
	if s.cache == nil {
		return
	}
	key := cache.EntityKey(string(kind), governanceID.String())
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// notFoundOr maps store misses to the API error taxonomy, wrapping other
// failures as internal.
func notFoundOr(err error, code types.ErrorCode, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return types.NotFoundError(code, format, args...)
	}
	return types.NewError(types.ErrInternalError, "storage failure").WithCause(err)
}
