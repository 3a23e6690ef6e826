// Package postgres implements the identity, challenge and credential storage
// interfaces on top of a pgx connection pool.
//
// The schema ships as embedded goose migrations; call Migrate once at startup
// (or via the migrate command) before using the Store.
package postgres
