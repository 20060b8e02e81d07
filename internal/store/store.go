// Package store persists governed objects as versioned JSON documents.
// This package is internal and should not be imported by external projects.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fedgovio/fedgov/config"
	"github.com/fedgovio/fedgov/internal/database"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🗃️ Document model
// =============================================================================

// Kind names a governed document family.
type Kind string

const (
	KindGroup              Kind = "group"
	KindStrategy           Kind = "strategy"
	KindDataset            Kind = "dataset"
	KindMLModel            Kind = "ml_model"
	KindProposal           Kind = "proposal"
	KindConfiguration      Kind = "configuration"
	KindQualityRequirement Kind = "quality_requirement"
	KindTrainingSession    Kind = "training_session"
)

// Sentinel errors mapped to the API error taxonomy by the service layer.
var (
	// ErrNotFound is returned when no matching document exists.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a conditional update matched no rows.
	ErrConflict = errors.New("document state conflict")
)

// Document is one stored version of a governed object. The payload holds
// the full JSON encoding; the remaining columns are query projections of
// payload fields and must be kept in sync by the writer.
type Document struct {
	Kind           string `gorm:"primaryKey;size:32"`
	ID             string `gorm:"primaryKey;size:36"`
	GovernanceID   string `gorm:"size:36;index:idx_documents_governance"`
	Version        int    `gorm:"index:idx_documents_governance"`
	Current        bool   `gorm:"index:idx_documents_governance"`
	Deleted        bool
	Status         string `gorm:"size:16;index"`
	StrategyID     string `gorm:"size:36;index"`
	ContentVariant string `gorm:"size:32"`
	Payload        []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName fixes the table name regardless of gorm's pluralization.
func (Document) TableName() string { return "documents" }

// Decode unmarshals the payload into out.
func (d *Document) Decode(out any) error {
	return json.Unmarshal(d.Payload, out)
}

// NewVersioned builds a document row for a versioned object.
func NewVersioned(kind Kind, meta types.GovernanceMeta, payload any) (*Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Document{
		Kind:         string(kind),
		ID:           meta.ID.String(),
		GovernanceID: meta.GovernanceID.String(),
		Version:      meta.Version,
		Current:      meta.Current,
		Deleted:      meta.Deleted,
		Payload:      raw,
	}, nil
}

// NewObject builds a document row for a non-versioned object. Non-versioned
// objects reuse the governance column as their identity so current-version
// lookups work uniformly.
func NewObject(kind Kind, meta types.ObjectMeta, payload any) (*Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Document{
		Kind:         string(kind),
		ID:           meta.ID.String(),
		GovernanceID: meta.ID.String(),
		Version:      1,
		Current:      true,
		Deleted:      meta.Deleted,
		Payload:      raw,
	}, nil
}

// =============================================================================
// 🗄️ Store
// =============================================================================

// Store is the document store over a relational backend.
type Store struct {
	pool   *database.PoolManager
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the configured backend, runs auto-migration and wraps
// the connection pool.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	poolCfg := database.DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
	}

	pool, err := database.NewPoolManager(db, poolCfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{pool: pool, db: db, logger: logger.With(zap.String("component", "store"))}
	if err := s.AutoMigrate(); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already open gorm handle (used by tests).
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger.With(zap.String("component", "store"))}
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AutoMigrate creates or updates the documents table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Document{}); err != nil {
		return fmt.Errorf("auto-migrate documents: %w", err)
	}
	return nil
}

// Pool exposes the pool manager for health checks, or nil when the store
// was built around a bare handle.
func (s *Store) Pool() *database.PoolManager { return s.pool }

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	return nil
}

// Ping checks backend connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// =============================================================================
// 🎯 Document operations
// =============================================================================

// Insert stores a new document row.
func (s *Store) Insert(ctx context.Context, doc *Document) error {
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("insert %s %s: %w", doc.Kind, doc.ID, err)
	}
	return nil
}

// Get loads a document by storage ID and unmarshals it into out.
func (s *Store) Get(ctx context.Context, kind Kind, id uuid.UUID, out any) error {
	var doc Document
	err := s.db.WithContext(ctx).
		Where("kind = ? AND id = ? AND deleted = ?", string(kind), id.String(), false).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return doc.Decode(out)
}

// GetCurrent loads the current version of a governed object.
func (s *Store) GetCurrent(ctx context.Context, kind Kind, governanceID uuid.UUID, out any) error {
	var doc Document
	err := s.db.WithContext(ctx).
		Where("kind = ? AND governance_id = ? AND current = ? AND deleted = ?",
			string(kind), governanceID.String(), true, false).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get current %s %s: %w", kind, governanceID, err)
	}
	return doc.Decode(out)
}

// GetVersion loads a specific version of a governed object.
func (s *Store) GetVersion(ctx context.Context, kind Kind, governanceID uuid.UUID, version int, out any) error {
	var doc Document
	err := s.db.WithContext(ctx).
		Where("kind = ? AND governance_id = ? AND version = ? AND deleted = ?",
			string(kind), governanceID.String(), version, false).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s %s v%d: %w", kind, governanceID, version, err)
	}
	return doc.Decode(out)
}

// UpdatePayload rewrites a document's payload in place. Used for objects
// that mutate without versioning, such as proposals accumulating votes.
func (s *Store) UpdatePayload(ctx context.Context, kind Kind, id uuid.UUID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	res := s.db.WithContext(ctx).Model(&Document{}).
		Where("kind = ? AND id = ? AND deleted = ?", string(kind), id.String(), false).
		Update("payload", raw)
	if res.Error != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionStatus atomically moves a document from one status to another,
// rewriting the payload in the same statement. ErrConflict is returned if
// the document is not in the expected status, which serialises concurrent
// tallies over the same proposal set.
func (s *Store) TransitionStatus(ctx context.Context, kind Kind, id uuid.UUID, from, to types.Status, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	res := s.db.WithContext(ctx).Model(&Document{}).
		Where("kind = ? AND id = ? AND status = ? AND deleted = ?",
			string(kind), id.String(), string(from), false).
		Updates(map[string]any{"status": string(to), "payload": raw})
	if res.Error != nil {
		return fmt.Errorf("transition %s %s: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// InsertVersion demotes the current version of a governed object and
// inserts the successor row in one transaction.
func (s *Store) InsertVersion(ctx context.Context, governanceID uuid.UUID, doc *Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Document{}).
			Where("kind = ? AND governance_id = ? AND current = ?", doc.Kind, governanceID.String(), true).
			Update("current", false)
		if res.Error != nil {
			return fmt.Errorf("demote current %s %s: %w", doc.Kind, governanceID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("insert %s v%d: %w", doc.Kind, doc.Version, err)
		}
		return nil
	})
}

// SoftDelete marks a document deleted without removing the row.
func (s *Store) SoftDelete(ctx context.Context, kind Kind, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&Document{}).
		Where("kind = ? AND id = ? AND deleted = ?", string(kind), id.String(), false).
		Update("deleted", true)
	if res.Error != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByIDs loads documents of one kind by storage ID, skipping missing
// and deleted entries.
func (s *Store) ListByIDs(ctx context.Context, kind Kind, ids []uuid.UUID) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("kind = ? AND id IN ? AND deleted = ?", string(kind), keys, false).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list %s by ids: %w", kind, err)
	}
	return docs, nil
}

// ListProposals returns proposal documents, optionally filtered by
// strategy and content variant.
func (s *Store) ListProposals(ctx context.Context, strategyID uuid.UUID, variant string) ([]Document, error) {
	q := s.db.WithContext(ctx).
		Where("kind = ? AND deleted = ?", string(KindProposal), false)
	if strategyID != uuid.Nil {
		q = q.Where("strategy_id = ?", strategyID.String())
	}
	if variant != "" {
		q = q.Where("content_variant = ?", variant)
	}
	var docs []Document
	if err := q.Order("created_at").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return docs, nil
}

// ListCurrent returns all current, non-deleted documents of a kind.
func (s *Store) ListCurrent(ctx context.Context, kind Kind) ([]Document, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("kind = ? AND current = ? AND deleted = ?", string(kind), true, false).
		Order("created_at").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return docs, nil
}
