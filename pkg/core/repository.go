package core

import (
	"context"
)

// Repository defines the persistence layer for schedules.
//
// Load and LoadFamily return ErrScheduleNotFound / an empty slice when
// nothing matches. Save is optimistic: it only writes when the stored
// version equals s.Version, increments s.Version on success and returns
// ErrVersionConflict otherwise.
type Repository interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	Load(ctx context.Context, id string) (*Schedule, error)
	// LoadFamily returns every schedule whose AnchorID is anchorID, ordered
	// by scheduled date. The anchor itself is included when it exists.
	LoadFamily(ctx context.Context, anchorID string) ([]*Schedule, error)

	// CreateBatch inserts all schedules or none.
	CreateBatch(ctx context.Context, schedules []*Schedule) error
	Save(ctx context.Context, s *Schedule) error
	// DeleteMany removes the given ids and reports how many rows went away.
	DeleteMany(ctx context.Context, ids []string) (int64, error)

	// Atomic runs fn against a repository bound to one isolated unit of
	// work. fn's reads observe one snapshot; returning an error rolls back
	// every write fn made.
	Atomic(ctx context.Context, fn func(tx Repository) error) error
}

// Converter turns a COMPLETED schedule into a service order and returns its
// reference. It is not safe to call twice for the same schedule.
type Converter interface {
	Convert(ctx context.Context, s *Schedule) (string, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, s *Schedule) (string, error)

// Convert calls f.
func (f ConverterFunc) Convert(ctx context.Context, s *Schedule) (string, error) {
	return f(ctx, s)
}
