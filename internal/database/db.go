package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with pooling and prepared statements.
type DB struct {
	*sql.DB
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// NewDB opens (or creates) the reference database under dataDir and runs
// migrations.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "maturity_meter.db")

	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &DB{
		DB:       db,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// migrate creates the schema and seeds the category reference table.
func (db *DB) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS hierarchy_nodes (
			node_id    TEXT NOT NULL,
			name       TEXT NOT NULL,
			level      INTEGER NOT NULL,
			parent_id  TEXT,
			label_name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hierarchy_level ON hierarchy_nodes(level)`,
		`CREATE INDEX IF NOT EXISTS idx_hierarchy_parent ON hierarchy_nodes(parent_id)`,

		`CREATE TABLE IF NOT EXISTS categories (
			name TEXT PRIMARY KEY
		)`,

		`CREATE TABLE IF NOT EXISTS kpi_definitions (
			kpi_id      TEXT NOT NULL,
			project_id  TEXT NOT NULL,
			name        TEXT NOT NULL,
			source_tool TEXT NOT NULL,
			board       TEXT NOT NULL,
			enabled     INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (kpi_id, project_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kpi_project ON kpi_definitions(project_id)`,

		`CREATE TABLE IF NOT EXISTS evaluations (
			id            TEXT PRIMARY KEY,
			scope_node_id TEXT NOT NULL DEFAULT '',
			project_count INTEGER NOT NULL,
			score         REAL NOT NULL,
			percentage    REAL NOT NULL,
			health        TEXT NOT NULL,
			warning_count INTEGER NOT NULL,
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_created ON evaluations(created_at)`,

		`INSERT OR IGNORE INTO categories (name) VALUES ('SPEED'), ('QUALITY'), ('VALUE'), ('DORA')`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Prepare caches prepared statements by key.
func (db *DB) Prepare(key, query string) (*sql.Stmt, error) {
	db.mutex.RLock()
	if stmt, ok := db.prepared[key]; ok {
		db.mutex.RUnlock()
		return stmt, nil
	}
	db.mutex.RUnlock()

	db.mutex.Lock()
	defer db.mutex.Unlock()

	if stmt, ok := db.prepared[key]; ok {
		return stmt, nil
	}

	stmt, err := db.DB.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement %s: %w", key, err)
	}
	db.prepared[key] = stmt
	return stmt, nil
}

// Close closes prepared statements and the underlying connection.
func (db *DB) Close() error {
	db.mutex.Lock()
	for _, stmt := range db.prepared {
		stmt.Close()
	}
	db.prepared = make(map[string]*sql.Stmt)
	db.mutex.Unlock()

	return db.DB.Close()
}
