package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fieldops/maintsched/pkg/core"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh in-memory SQLite instance on a single connection, since
// every new connection to ":memory:" would see an empty database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		require.NoError(t, err, "open postgres test db")
		require.NoError(t, ResourceConstrainedPoolConfig().With(MaxOpenConns(4)).Apply(db))

		cleanupPostgresDB(t, db)
		t.Cleanup(func() {
			cleanupPostgresDB(t, db)
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
		return db
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err, "open in-memory sqlite")
	require.NoError(t, SQLitePoolConfig().Apply(db))
	return db
}

// cleanupPostgresDB deletes all rows so tests share one database.
func cleanupPostgresDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	if db.Migrator().HasTable(&core.Schedule{}) {
		db.Exec("DELETE FROM schedules")
	}
}

func newTestStorage(t *testing.T) *GormStorage {
	t.Helper()
	s := NewGormStorage(openTestDB(t), WithRetry(RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}))
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

var testAnchorDate = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// newTestFamily builds, without storing, an anchor with a biweekly rule
// and n occurrences.
func newTestFamily(n int) []*core.Schedule {
	id := uuid.New().String()
	anchor := &core.Schedule{
		ID:            id,
		AnchorID:      id,
		ScheduledDate: testAnchorDate,
		Status:        core.StatusScheduled,
		EquipmentRef:  "CHILLER-2",
		Priority:      "high",
		Description:   "quarterly inspection",
		Rule: &core.RecurrenceRule{
			Frequency:   core.FrequencyWeekly,
			Interval:    2,
			Termination: core.TerminateAfterCount,
			Count:       max(n, 1),
		},
	}
	out := []*core.Schedule{anchor}
	for i := 1; i <= n; i++ {
		out = append(out, anchor.Occurrence(uuid.New().String(), testAnchorDate.AddDate(0, 0, 14*i)))
	}
	return out
}
