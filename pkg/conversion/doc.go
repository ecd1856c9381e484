// Package conversion provides the default service order adapter.
//
// GormConverter implements core.Converter by writing a service_orders row
// holding a snapshot of the completed schedule. The schedule_id column is
// unique: converting the same schedule again returns the existing order
// instead of creating a second one.
package conversion
