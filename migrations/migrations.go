// Package migrations embeds the local state schema for each supported driver.
package migrations

import "embed"

// SqliteMigrations holds the schema for single-user local state files.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations holds the schema for shared local state databases.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
