// Package migrations embeds the engine database schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
