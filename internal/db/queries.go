package db

const (
	CreateMigrationsTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`

	GetAppliedMigrations = `SELECT version FROM schema_migrations`

	InsertMigration = `INSERT INTO schema_migrations (version) VALUES (?)`
)

const (
	InsertJobEvent = `
		INSERT INTO job_events (job_id, order_name, variant_name, unit_index, quantity, event, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectJobEvents = `
		SELECT id, job_id, order_name, variant_name, unit_index, quantity, event, status, detail, created_at
		FROM job_events
	`
)

const (
	IncrementFulfilledCounter = `
		INSERT INTO print_counters (date, fulfilled, failed)
		VALUES (?, 1, 0)
		ON CONFLICT(date) DO UPDATE SET fulfilled = fulfilled + 1
	`

	IncrementFailedCounter = `
		INSERT INTO print_counters (date, fulfilled, failed)
		VALUES (?, 0, 1)
		ON CONFLICT(date) DO UPDATE SET failed = failed + 1
	`

	GetPrintCounter = `
		SELECT date, fulfilled, failed FROM print_counters WHERE date = ?
	`

	GetPrintCountersByDateRange = `
		SELECT date, fulfilled, failed
		FROM print_counters WHERE date >= ? AND date <= ? ORDER BY date ASC
	`
)
