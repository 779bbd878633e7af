package storage

import "embed"

// MigrationFS embeds the durable-tier schema so no migration files need to
// exist on disk at runtime.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
