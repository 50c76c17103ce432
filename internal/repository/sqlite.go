package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// NewSQLiteDB 打开单一 SQLite 数据库文件
// WAL + busy_timeout：webhook 并发投递时写入串行化由数据库事务保证
func NewSQLiteDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc/sqlite：单连接写入，避免 database/sql 连接池放大锁竞争
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createSchema(db); err != nil {
		return nil, err
	}

	return db, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS erasure_events (
			event_id            TEXT PRIMARY KEY,
			job_id              TEXT NOT NULL,
			event_kind          TEXT NOT NULL,
			occurred_at         INTEGER NOT NULL,
			event_date          TEXT NOT NULL,
			event_month         TEXT NOT NULL,
			device_type         TEXT NOT NULL DEFAULT '',
			engineer_initials   TEXT NOT NULL DEFAULT '',
			duration_seconds    INTEGER NOT NULL DEFAULT 0,
			error_kind          TEXT NOT NULL DEFAULT '',
			manufacturer        TEXT NOT NULL DEFAULT '',
			model               TEXT NOT NULL DEFAULT '',
			system_serial       TEXT NOT NULL DEFAULT '',
			disk_serial         TEXT NOT NULL DEFAULT '',
			disk_capacity_bytes INTEGER NOT NULL DEFAULT 0,
			drive_count         INTEGER NOT NULL DEFAULT 0,
			drive_type          TEXT NOT NULL DEFAULT '',
			created_at          INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_erasure_events_date ON erasure_events (event_date)`,
		`CREATE INDEX IF NOT EXISTS idx_erasure_events_date_engineer ON erasure_events (event_date, engineer_initials)`,
		`CREATE TABLE IF NOT EXISTS seen_jobs (
			job_id        TEXT NOT NULL,
			event_kind    TEXT NOT NULL,
			first_seen_at INTEGER NOT NULL,
			PRIMARY KEY (job_id, event_kind)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_rollups (
			event_date TEXT PRIMARY KEY,
			booked_in  INTEGER NOT NULL DEFAULT 0,
			erased     INTEGER NOT NULL DEFAULT 0,
			qa         INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS engineer_rollups (
			event_date        TEXT NOT NULL,
			engineer_initials TEXT NOT NULL,
			erased            INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (event_date, engineer_initials)
		)`,
		`CREATE TABLE IF NOT EXISTS engineer_device_rollups (
			event_date        TEXT NOT NULL,
			engineer_initials TEXT NOT NULL,
			device_type       TEXT NOT NULL,
			erased            INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (event_date, engineer_initials, device_type)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close 关闭数据库连接
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
