package migrations

import "embed"

// FS contains embedded PostgreSQL migrations for the user ledger.
//
//go:embed *.sql
var FS embed.FS
