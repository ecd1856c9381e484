// Package core provides the fundamental types and interfaces for the maintenance engine.
//
// This package contains:
//   - Schedule data model with GORM annotations
//   - Status and RecurrenceRule closed enumerations
//   - Repository interface defining the persistence contract
//   - Converter interface for the service-order boundary
//   - Event types for lifecycle monitoring
//   - Error types for rule validation, transitions, cascades and conversion
//
// Most users should import the root package github.com/fieldops/maintsched
// instead of this package directly.
package core
