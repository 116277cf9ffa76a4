package migrations

import "embed"

// FS embeds the PostgreSQL schema migrations applied by goose.
//
//go:embed *.sql
var FS embed.FS
