// Package migrations embeds the SQL schema for every supported dialect.
package migrations

import "embed"

// SQLite holds the goose migrations for sqlite, rooted at "sqlite".
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the goose migrations for postgres, rooted at "postgres".
//
//go:embed postgres/*.sql
var Postgres embed.FS
