// Package migrations holds the chain database schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
