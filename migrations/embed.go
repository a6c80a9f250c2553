// Package migrations embeds the SQL schema so binaries can migrate without files on disk.
package migrations

import "embed"

// FS holds the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
