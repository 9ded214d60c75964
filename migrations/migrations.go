// Package migrations embeds the index-store schema migrations so the server
// binary and integration tests migrate from the same source.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
