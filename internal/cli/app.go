package cli

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fieldops/maintsched/internal/config"
	"github.com/fieldops/maintsched/pkg/conversion"
	"github.com/fieldops/maintsched/pkg/engine"
	"github.com/fieldops/maintsched/pkg/storage"
)

// app holds everything one command needs, built from the loaded config.
type app struct {
	db     *gorm.DB
	store  *storage.GormStorage
	orders *conversion.GormConverter
	engine *engine.Engine
	logger *slog.Logger
}

func newLogger(c *config.Config) (*slog.Logger, error) {
	level, err := c.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func openDB(c *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch c.Driver {
	case "postgres":
		dialector = postgres.Open(c.DSN)
	case "sqlite":
		dialector = sqlite.Open(c.DSN)
	default:
		return nil, errors.Errorf("unsupported driver %q", c.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", c.Driver)
	}
	return db, nil
}

func newApp(c *config.Config) (*app, error) {
	if c == nil {
		return nil, errors.New("config not loaded")
	}
	log, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	pool, err := c.StoragePool()
	if err != nil {
		return nil, err
	}

	db, err := openDB(c)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewGormStorageWithPool(db, pool)
	if err != nil {
		return nil, errors.Wrap(err, "configure pool")
	}
	orders := conversion.NewGormConverter(db, conversion.WithLogger(log))

	eng := engine.New(store,
		engine.WithLogger(log),
		engine.WithLocation(loc),
		engine.WithExpansionCap(c.MaxOccurrences),
		engine.WithConverter(orders),
		engine.WithConversionLockTTL(c.ConversionLockTTL),
	)
	return &app{db: db, store: store, orders: orders, engine: eng, logger: log}, nil
}

func (a *app) migrate(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return errors.Wrap(err, "migrate schedules")
	}
	if err := a.orders.Migrate(ctx); err != nil {
		return errors.Wrap(err, "migrate service orders")
	}
	return nil
}

func (a *app) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
