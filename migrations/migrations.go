// AngelaMos | 2026
// migrations.go

// Package migrations embeds the goose SQL migrations for every
// supported dialect. Each dialect lives in a directory named after it.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed mysql/*.sql postgresql/*.sql
var files embed.FS

// For returns the migration tree for a dialect directory such as
// "mysql" or "postgresql".
func For(dialect string) (fs.FS, error) {
	return fs.Sub(files, dialect)
}
