// Package migrations embeds the schema files so both binaries can apply them
// on startup without shipping the directory next to the executable.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
