// Package migrations embeds the PostgreSQL schema applied when MIGRATIONS=1.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
