// Package security provides validation, sanitization, and limits for the maintenance engine.
//
// This package includes:
//   - Schedule id validation
//   - Free-form text sanitization for descriptions and observations
//   - The occurrence cap that bounds expansions and cascade deletes
//
// Most users should import the root package github.com/fieldops/maintsched
// which re-exports these limits.
package security
