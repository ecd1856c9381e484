package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fieldops/maintsched/pkg/core"
)

// createBatchSize bounds rows per INSERT statement. A full family is at most
// core.MaxRuleOccurrences+1 rows.
const createBatchSize = 100

// GormStorage implements core.Repository using GORM.
type GormStorage struct {
	db    *gorm.DB
	retry RetryConfig
	inTx  bool
}

// Option configures a GormStorage.
type Option interface {
	apply(*GormStorage)
}

type optionFunc func(*GormStorage)

func (f optionFunc) apply(s *GormStorage) { f(s) }

// WithRetry sets how Atomic retries transient serialization and lock errors.
func WithRetry(cfg RetryConfig) Option {
	return optionFunc(func(s *GormStorage) {
		s.retry = cfg
	})
}

// NewGormStorage creates a new GORM-backed repository.
func NewGormStorage(db *gorm.DB, opts ...Option) *GormStorage {
	s := &GormStorage{db: db, retry: DefaultRetryConfig()}
	for _, opt := range opts {
		opt.apply(s)
	}
	return s
}

// DB returns the underlying handle, bound to the open transaction inside
// Atomic.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// Dialect returns the GORM dialector name, e.g. "sqlite" or "postgres".
func (s *GormStorage) Dialect() string {
	return s.db.Dialector.Name()
}

// Migrate creates the schedules table.
func (s *GormStorage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&core.Schedule{}); err != nil {
		return fmt.Errorf("maintsched: migrate schedules: %w", err)
	}
	return nil
}

// Load fetches one schedule by id.
func (s *GormStorage) Load(ctx context.Context, id string) (*core.Schedule, error) {
	var sched core.Schedule
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("maintsched: load schedule %s: %w", id, err)
	}
	return &sched, nil
}

// LoadFamily returns every schedule anchored on anchorID ordered by date.
func (s *GormStorage) LoadFamily(ctx context.Context, anchorID string) ([]*core.Schedule, error) {
	var family []*core.Schedule
	err := s.db.WithContext(ctx).
		Where("anchor_id = ?", anchorID).
		Order("scheduled_date ASC, id ASC").
		Find(&family).Error
	if err != nil {
		return nil, fmt.Errorf("maintsched: load family %s: %w", anchorID, err)
	}
	return family, nil
}

// CreateBatch inserts schedules in one transaction.
func (s *GormStorage) CreateBatch(ctx context.Context, schedules []*core.Schedule) error {
	if len(schedules) == 0 {
		return nil
	}
	for _, sched := range schedules {
		if sched.Status == "" {
			sched.Status = core.StatusScheduled
		}
		if sched.Version == 0 {
			sched.Version = 1
		}
		if sched.AnchorID == "" {
			sched.AnchorID = sched.ID
		}
	}

	insert := func(tx *gorm.DB) error {
		return tx.CreateInBatches(schedules, createBatchSize).Error
	}
	var err error
	if s.inTx {
		err = insert(s.db.WithContext(ctx))
	} else {
		err = s.db.WithContext(ctx).Transaction(insert)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: duplicate schedule id: %w", core.ErrInvalidSchedule, err)
	}
	if err != nil {
		return fmt.Errorf("maintsched: create %d schedules: %w", len(schedules), err)
	}
	return nil
}

// Save writes every column of sched if the stored version still equals
// sched.Version, then increments sched.Version.
func (s *GormStorage) Save(ctx context.Context, sched *core.Schedule) error {
	next := *sched
	next.Version = sched.Version + 1

	result := s.db.WithContext(ctx).
		Model(&next).
		Where("version = ?", sched.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(&next)
	if result.Error != nil {
		return fmt.Errorf("maintsched: save schedule %s: %w", sched.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&core.Schedule{}).Where("id = ?", sched.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("maintsched: save schedule %s: %w", sched.ID, err)
		}
		if count == 0 {
			return core.ErrScheduleNotFound
		}
		return core.ErrVersionConflict
	}

	sched.Version = next.Version
	sched.UpdatedAt = next.UpdatedAt
	return nil
}

// DeleteMany removes ids in one statement.
func (s *GormStorage) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&core.Schedule{})
	if result.Error != nil {
		return 0, fmt.Errorf("maintsched: delete %d schedules: %w", len(ids), result.Error)
	}
	return result.RowsAffected, nil
}

// Atomic runs fn in a database transaction. On PostgreSQL the transaction
// is SERIALIZABLE, so a sibling inserted concurrently with a family delete
// aborts one side instead of surviving as an orphan. Serialization and lock
// failures are retried per the RetryConfig; every other error rolls back
// and is returned as is. Calling Atomic on the repository passed to fn joins
// the open transaction.
func (s *GormStorage) Atomic(ctx context.Context, fn func(tx core.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	var opts []*sql.TxOptions
	if s.Dialect() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	return retryWithBackoff(ctx, s.retry, IsTransientError, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&GormStorage{db: tx, retry: s.retry, inTx: true})
		}, opts...)
	})
}
