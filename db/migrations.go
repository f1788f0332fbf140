// Package db holds the database schema migrations.
package db

import "embed"

// Migrations contains the ordered golang-migrate SQL files.
//
//go:embed migrations/*.sql
var Migrations embed.FS
