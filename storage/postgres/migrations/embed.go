// Package migrations contains the goose migrations for the Postgres store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
