// Package engine wires the expander, the lifecycle state machine and the
// family coordinator into the inbound operations of the maintenance
// scheduler: Create, Transition, FamilyInfo and DeleteFamily, plus the
// single-schedule mutations.
//
// This package includes:
//   - Engine: the entry point used by the HTTP API and the CLI
//   - Option: configuration of the engine and its components
//   - Hook registration for create, transition and delete outcomes
//   - Event subscription for monitoring
//
// Most users should import the root package github.com/fieldops/maintsched
// which re-exports Engine and its options.
package engine
