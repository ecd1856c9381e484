// Package storage provides the GORM implementation of core.Repository.
//
// GormStorage works with any GORM dialector; SQLite and PostgreSQL are the
// tested ones. Saves are optimistic (UPDATE ... WHERE version = ?), and
// Atomic wraps a unit of work in one transaction, retrying it when the
// database reports a serialization failure, a deadlock or a busy lock.
//
// Open the database with TranslateError enabled so duplicate ids surface as
// core.ErrInvalidSchedule:
//
//	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	repo, err := storage.NewGormStorageWithPool(db, storage.DefaultPoolConfig())
package storage
