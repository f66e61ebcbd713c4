// Package migrations embeds the PostgreSQL schema of the bot.
package migrations

import "embed"

// FS holds every *.up.sql file of this directory.
//
//go:embed *.up.sql
var FS embed.FS
