package store

import (
	"database/sql"
	"fmt"

	"tubesieve/internal/logging"
)

// Schema versions:
// v1: hidden_comments without page_url
// v2: page_url column added
const CurrentSchemaVersion = 2

// Migration adds a column to an existing table.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists columns that newer schemas added. Fresh
// databases already have them; old ones get them here.
var pendingMigrations = []Migration{
	{"hidden_comments", "page_url", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("table missing, skipping migration: %s.%s", m.Table, m.Column)
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			// Racing another process that already added it is fine.
			logging.Get(logging.CategoryStore).Warn("migration failed (may already exist): %s.%s: %v", m.Table, m.Column, err)
			continue
		}
		logging.Store("migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	if applied > 0 {
		logging.Store("schema migrations complete: applied=%d", applied)
	}
	return nil
}

// GetSchemaVersion returns the schema version of a database. Databases
// predating the version table are inferred from their structure.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_version") {
		var version int
		if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err == nil {
			return version
		}
	}
	if !tableExists(db, "hidden_comments") {
		return 0
	}
	if columnExists(db, "hidden_comments", "page_url") {
		return 2
	}
	return 1
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	query := fmt.Sprintf("PRAGMA table_info(%s)", table)
	rows, err := db.Query(query)
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
