package migrations

import "embed"

// SQLite embeds the migrations for the SQLite storage layer.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres embeds the migrations for the PostgreSQL storage layer.
//
//go:embed postgres/*.sql
var Postgres embed.FS
