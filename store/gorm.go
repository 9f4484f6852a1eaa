package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/evoflow/evoflow/retry"
	"github.com/evoflow/evoflow/types"
)

// Config configures the GORM-backed store.
type Config struct {
	// Driver selects the dialector: sqlite, postgres, mysql.
	Driver string `yaml:"driver" json:"driver"`
	// DSN is passed to the driver as-is.
	DSN string `yaml:"dsn" json:"dsn"`

	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// DefaultConfig returns a pure-Go sqlite configuration suitable for
// development and tests.
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		DSN:             "file:evoflow.db?cache=shared",
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
	}
}

// GormStore implements Store on top of a relational database via GORM.
// Every call is treated as a network round trip and wrapped in a retryer
// whose predicate only matches transient infrastructure errors.
type GormStore struct {
	db      *gorm.DB
	retryer retry.Retryer
	logger  *zap.Logger
}

// openDialector maps a driver name to a GORM dialector.
func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite", "":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// NewGormStore opens the database, tunes the connection pool and runs
// auto-migration for the pipeline entities.
func NewGormStore(cfg Config, logger *zap.Logger) (*GormStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := openDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := NewGormStoreFromDB(db, logger)

	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}

	logger.Info("store initialized",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return s, nil
}

// NewGormStoreFromDB wraps an already-open *gorm.DB. Used by tests and by
// callers that manage the connection themselves.
func NewGormStoreFromDB(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := retry.DefaultPolicy()
	policy.Predicate = transient
	return &GormStore{
		db:      db,
		retryer: retry.NewBackoffRetryer(policy, logger),
		logger:  logger.With(zap.String("component", "store")),
	}
}

// AutoMigrate creates or updates the schema for the pipeline entities.
func (s *GormStore) AutoMigrate() error {
	err := s.db.AutoMigrate(
		&types.Plugin{},
		&types.AgentVersion{},
		&types.ExecutionRecord{},
		&types.VoteRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for administrative tooling.
func (s *GormStore) DB() *gorm.DB { return s.db }

// transient is the store-level retry predicate. Resolution and validation
// failures are terminal; everything else reaching us from the driver is
// assumed to be a connection-level fault and worth retrying.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if e := types.AsError(err); e != nil {
		return e.Retryable
	}
	if errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrInvalidTransaction) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// --- Plugins ---

func (s *GormStore) GetPlugin(ctx context.Context, id string) (*types.Plugin, error) {
	return retry.DoTyped(s.retryer, ctx, func() (*types.Plugin, error) {
		var p types.Plugin
		if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.NewNotFoundError("plugin", id)
			}
			return nil, err
		}
		return &p, nil
	})
}

func (s *GormStore) FindPlugins(ctx context.Context, filter PluginFilter) ([]types.Plugin, error) {
	return retry.DoTyped(s.retryer, ctx, func() ([]types.Plugin, error) {
		q := s.db.WithContext(ctx).Model(&types.Plugin{})
		if len(filter.IDs) > 0 {
			q = q.Where("id IN ?", filter.IDs)
		}
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.MinXP > 0 {
			q = q.Where("xp >= ?", filter.MinXP)
		}
		var plugins []types.Plugin
		if err := q.Find(&plugins).Error; err != nil {
			return nil, err
		}
		return plugins, nil
	})
}

func (s *GormStore) AddPluginXP(ctx context.Context, id string, delta int64) error {
	return s.retryer.Do(ctx, func() error {
		return s.db.WithContext(ctx).Model(&types.Plugin{}).
			Where("id = ?", id).
			UpdateColumn("xp", gorm.Expr("xp + ?", delta)).Error
	})
}

// --- Agent versions ---

func (s *GormStore) GetAgentVersion(ctx context.Context, id string) (*types.AgentVersion, error) {
	return retry.DoTyped(s.retryer, ctx, func() (*types.AgentVersion, error) {
		var v types.AgentVersion
		if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.NewNotFoundError("agent version", id)
			}
			return nil, err
		}
		return &v, nil
	})
}

// ActiveAgentVersion resolves the plugin's live version. During a version
// swap a plugin may briefly expose zero or two active rows; the newest
// created row wins, deterministically.
func (s *GormStore) ActiveAgentVersion(ctx context.Context, pluginID string) (*types.AgentVersion, error) {
	return retry.DoTyped(s.retryer, ctx, func() (*types.AgentVersion, error) {
		var v types.AgentVersion
		err := s.db.WithContext(ctx).
			Where("plugin_id = ? AND status = ?", pluginID, types.VersionStatusActive).
			Order("created_at DESC").
			First(&v).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.NewNotFoundError("active agent version for plugin", pluginID)
			}
			return nil, err
		}
		return &v, nil
	})
}

func (s *GormStore) FindAgentVersions(ctx context.Context, pluginID string) ([]types.AgentVersion, error) {
	return retry.DoTyped(s.retryer, ctx, func() ([]types.AgentVersion, error) {
		var versions []types.AgentVersion
		err := s.db.WithContext(ctx).
			Where("plugin_id = ?", pluginID).
			Order("version DESC").
			Find(&versions).Error
		if err != nil {
			return nil, err
		}
		return versions, nil
	})
}

func (s *GormStore) InsertAgentVersion(ctx context.Context, v *types.AgentVersion) error {
	if v.PluginID == "" {
		return types.NewValidationError("agent version requires a plugin id")
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	return s.retryer.Do(ctx, func() error {
		return s.db.WithContext(ctx).Create(v).Error
	})
}

func (s *GormStore) UpdateAgentVersionStatus(ctx context.Context, id string, status types.VersionStatus) error {
	return s.retryer.Do(ctx, func() error {
		return s.db.WithContext(ctx).Model(&types.AgentVersion{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":     status,
				"updated_at": time.Now(),
			}).Error
	})
}

func (s *GormStore) AddAgentVersionXP(ctx context.Context, id string, delta int64) error {
	return s.retryer.Do(ctx, func() error {
		return s.db.WithContext(ctx).Model(&types.AgentVersion{}).
			Where("id = ?", id).
			UpdateColumn("xp", gorm.Expr("xp + ?", delta)).Error
	})
}

func (s *GormStore) AddVoteCount(ctx context.Context, id string, vote types.VoteType) error {
	column := "upvotes"
	if vote == types.VoteTypeDown {
		column = "downvotes"
	}
	return s.retryer.Do(ctx, func() error {
		return s.db.WithContext(ctx).Model(&types.AgentVersion{}).
			Where("id = ?", id).
			UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	})
}

// --- Execution log ---

func (s *GormStore) InsertExecution(ctx context.Context, rec *types.ExecutionRecord) error {
	if rec.PluginID == "" {
		return types.NewValidationError("execution record requires a plugin id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return s.retryer.Do(ctx, func() error {
		return s.db.WithContext(ctx).Create(rec).Error
	})
}

func (s *GormStore) FindExecutions(ctx context.Context, agentVersionID string) ([]types.ExecutionRecord, error) {
	return retry.DoTyped(s.retryer, ctx, func() ([]types.ExecutionRecord, error) {
		var records []types.ExecutionRecord
		err := s.db.WithContext(ctx).
			Where("agent_version_id = ?", agentVersionID).
			Order("created_at ASC").
			Find(&records).Error
		if err != nil {
			return nil, err
		}
		return records, nil
	})
}

func (s *GormStore) CountExecutionFailures(ctx context.Context, agentVersionID string) (int64, error) {
	return retry.DoTyped(s.retryer, ctx, func() (int64, error) {
		var count int64
		err := s.db.WithContext(ctx).Model(&types.ExecutionRecord{}).
			Where("agent_version_id = ? AND status = ?", agentVersionID, types.ExecutionStatusFailure).
			Count(&count).Error
		return count, err
	})
}

// --- Vote log ---

func (s *GormStore) InsertVote(ctx context.Context, rec *types.VoteRecord) error {
	if rec.AgentVersionID == "" {
		return types.NewValidationError("vote record requires an agent version id")
	}
	if rec.Type != types.VoteTypeUp && rec.Type != types.VoteTypeDown {
		return types.NewValidationError("vote type must be up or down")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return s.retryer.Do(ctx, func() error {
		return s.db.WithContext(ctx).Create(rec).Error
	})
}

func (s *GormStore) FindVotes(ctx context.Context, agentVersionID string) ([]types.VoteRecord, error) {
	return retry.DoTyped(s.retryer, ctx, func() ([]types.VoteRecord, error) {
		var votes []types.VoteRecord
		err := s.db.WithContext(ctx).
			Where("agent_version_id = ?", agentVersionID).
			Order("created_at ASC").
			Find(&votes).Error
		if err != nil {
			return nil, err
		}
		return votes, nil
	})
}

var _ Store = (*GormStore)(nil)
