// Package migrations embeds the Postgres schema for the appointments store.
package migrations

import "embed"

// FS holds the numbered golang-migrate files.
//
//go:embed *.sql
var FS embed.FS
