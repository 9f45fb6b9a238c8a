// Package store persists listings, vehicles and MOT test records in SQLite.
//
// The schema is embedded and versioned. Identity rules are enforced with
// indexes: listing source identifiers are unique, a listing has at most one
// active vehicle, and a registration appears at most once among the active
// vehicles of a single listing. Violations of the registration rule surface as
// ErrDuplicateRegistration so callers cannot mistake them for transient faults.
//
// Stage writes are column-scoped updates so concurrent stages touching the same
// vehicle only overwrite the fields they own.
package store
