// Package migrations embeds the SQL schema for the PostgreSQL storage driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
