// Package sqlite implements the identity, challenge and credential storage
// interfaces on a single SQLite file using the pure-Go modernc driver.
//
// It suits single-instance deployments and tests. Open the store, call
// Migrate, and hand it to the auth and integration services.
package sqlite
