// Package migrations holds the versioned schema applied by cmd/migrate.
package migrations

import "embed"

// FS contains the numbered up and down SQL files.
//
//go:embed *.sql
var FS embed.FS
