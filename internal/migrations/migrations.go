// Package migrations embeds the SQL schema of the Postgres ledger host.
package migrations

import "embed"

// FS holds the versioned migration files in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
