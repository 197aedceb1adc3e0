// Package db embeds the SQL migration files shipped with the binary.
package db

import "embed"

// Migrations holds the versioned schema migration files.
//
//go:embed migrations/*.sql
var Migrations embed.FS
