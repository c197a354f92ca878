// Package migration applies versioned SQL schema changes to a SQLite
// database.
//
// Migration files live in an fs.FS (usually an embed.FS compiled into the
// binary) and are named {version}_{description}.sql, for example
// "001_allocation_schema.sql". Each file runs in its own transaction and is
// recorded in the schema_migrations table so it is applied once.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
