package migrations

import "embed"

// FS contains embedded SQLite migrations for the user ledger.
//
//go:embed *.sql
var FS embed.FS
