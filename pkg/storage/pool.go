package storage

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// PoolConfig sizes the database/sql pool behind a GormStorage.
// Zero lifetimes mean connections are kept until they fail.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the pool used by a single API instance.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// HighConcurrencyPoolConfig suits several API instances sharing a large
// PostgreSQL server.
func HighConcurrencyPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    100,
		MaxIdleConns:    25,
		ConnMaxLifetime: 10 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
	}
}

// ResourceConstrainedPoolConfig suits small databases with a low
// max_connections.
func ResourceConstrainedPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 3 * time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
	}
}

// SQLitePoolConfig serializes access through one connection. SQLite allows a
// single writer, and an in-memory database lives only as long as its
// connection.
func SQLitePoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

// PoolPreset returns a named preset: "default", "high-concurrency",
// "constrained" or "sqlite".
func PoolPreset(name string) (PoolConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultPoolConfig(), nil
	case "high-concurrency":
		return HighConcurrencyPoolConfig(), nil
	case "constrained":
		return ResourceConstrainedPoolConfig(), nil
	case "sqlite":
		return SQLitePoolConfig(), nil
	}
	return PoolConfig{}, fmt.Errorf("unknown pool preset %q", name)
}

// PoolOption overrides one setting of a PoolConfig.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// MaxOpenConns caps concurrent connections. Family deletes and transitions
// each hold one for their whole unit of work.
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = n
	})
}

// MaxIdleConns caps warm connections kept between requests.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxIdleConns = n
	})
}

// ConnMaxLifetime recycles connections after d.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxLifetime = d
	})
}

// ConnMaxIdleTime closes connections idle for longer than d.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxIdleTime = d
	})
}

// With returns a copy of c with opts applied.
func (c PoolConfig) With(opts ...PoolOption) PoolConfig {
	for _, opt := range opts {
		opt.applyPool(&c)
	}
	return c
}

// Validate rejects pools that cannot serve a request.
func (c PoolConfig) Validate() error {
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max open connections must be at least 1, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max idle connections (%d) exceed max open connections (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// Apply configures the pool of db's underlying *sql.DB.
func (c PoolConfig) Apply(db *gorm.DB) error {
	if err := c.Validate(); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("maintsched: get *sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	return nil
}

// NewGormStorageWithPool applies pool to db and returns a repository on it.
//
// Example:
//
//	pool, _ := storage.PoolPreset("high-concurrency")
//	repo, err := storage.NewGormStorageWithPool(db, pool.With(storage.MaxOpenConns(50)))
func NewGormStorageWithPool(db *gorm.DB, pool PoolConfig, opts ...Option) (*GormStorage, error) {
	if err := pool.Apply(db); err != nil {
		return nil, err
	}
	return NewGormStorage(db, opts...), nil
}
