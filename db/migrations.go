// Package db embeds the schema migrations so the migrate command ships as
// a single binary.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
