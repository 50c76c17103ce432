package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"erasure-report/internal/domain"
)

// SQLiteEventsRepository 擦除事件 Repository 实现
type SQLiteEventsRepository struct {
	db *sql.DB
}

// NewSQLiteEventsRepository 创建擦除事件 Repository
func NewSQLiteEventsRepository(db *sql.DB) *SQLiteEventsRepository {
	return &SQLiteEventsRepository{db: db}
}

// 确保实现了接口
var _ EventsRepository = (*SQLiteEventsRepository)(nil)

// AdmitEvent 原子去重写入
// seen_jobs 的 INSERT ... ON CONFLICT DO NOTHING 即 compare-and-insert：
// RowsAffected == 0 说明 (job_id, event_kind) 已被记录，整个事务回滚，
// 不存在"有台账无事件"或"有事件无台账"的中间状态
func (r *SQLiteEventsRepository) AdmitEvent(ctx context.Context, event *domain.RawEvent) (bool, error) {
	if event.JobID == "" {
		return false, fmt.Errorf("job_id is required")
	}
	if event.Kind == "" {
		return false, fmt.Errorf("event_kind is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin admit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO seen_jobs (job_id, event_kind, first_seen_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (job_id, event_kind) DO NOTHING`,
		event.JobID, string(event.Kind), time.Now().UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record seen identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		// duplicate delivery
		return false, nil
	}

	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().UTC().Unix()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO erasure_events (
			event_id, job_id, event_kind, occurred_at, event_date, event_month,
			device_type, engineer_initials, duration_seconds, error_kind,
			manufacturer, model, system_serial, disk_serial,
			disk_capacity_bytes, drive_count, drive_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.JobID, string(event.Kind), event.OccurredAt,
		event.Date, event.Month, event.DeviceType, event.EngineerInitials,
		event.DurationSeconds, event.ErrorKind,
		event.Manufacturer, event.Model, event.SystemSerial, event.DiskSerial,
		event.DiskCapacityBytes, event.DriveCount, event.DriveType, event.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert erasure event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit admit transaction: %w", err)
	}
	return true, nil
}

const eventColumns = `
	event_id, job_id, event_kind, occurred_at, event_date, event_month,
	device_type, engineer_initials, duration_seconds, error_kind,
	manufacturer, model, system_serial, disk_serial,
	disk_capacity_bytes, drive_count, drive_type, created_at`

func scanEvent(rows *sql.Rows) (*domain.RawEvent, error) {
	var ev domain.RawEvent
	var kind string
	err := rows.Scan(
		&ev.EventID, &ev.JobID, &kind, &ev.OccurredAt, &ev.Date, &ev.Month,
		&ev.DeviceType, &ev.EngineerInitials, &ev.DurationSeconds, &ev.ErrorKind,
		&ev.Manufacturer, &ev.Model, &ev.SystemSerial, &ev.DiskSerial,
		&ev.DiskCapacityBytes, &ev.DriveCount, &ev.DriveType, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Kind = domain.EventKind(kind)
	return &ev, nil
}

// ListEvents 按日期区间查询原始事件
func (r *SQLiteEventsRepository) ListEvents(ctx context.Context, startDate, endDate, deviceType string) ([]*domain.RawEvent, error) {
	if startDate == "" || endDate == "" {
		return nil, fmt.Errorf("start_date and end_date are required")
	}

	query := `SELECT ` + eventColumns + `
		FROM erasure_events
		WHERE event_date >= ? AND event_date <= ?`
	args := []any{startDate, endDate}
	if deviceType != "" {
		query += ` AND device_type = ?`
		args = append(args, deviceType)
	}
	query += ` ORDER BY occurred_at, event_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list erasure events: %w", err)
	}
	defer rows.Close()

	var out []*domain.RawEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan erasure event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountByKind 某天某事件类型的数量
func (r *SQLiteEventsRepository) CountByKind(ctx context.Context, date string, kind domain.EventKind) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM erasure_events WHERE event_date = ? AND event_kind = ?`,
		date, string(kind),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// CountSuccessByEngineer 某天某工程师的成功擦除数
func (r *SQLiteEventsRepository) CountSuccessByEngineer(ctx context.Context, date, initials string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM erasure_events
		 WHERE event_date = ? AND engineer_initials = ? AND event_kind = 'success'`,
		date, initials,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count engineer successes: %w", err)
	}
	return n, nil
}

// CountSuccessByEngineerDevice 某天某工程师按设备类别分组的成功擦除数
func (r *SQLiteEventsRepository) CountSuccessByEngineerDevice(ctx context.Context, date, initials string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_type, COUNT(*) FROM erasure_events
		 WHERE event_date = ? AND engineer_initials = ? AND event_kind = 'success'
		 GROUP BY device_type`,
		date, initials,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count engineer successes by device: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var dt string
		var n int
		if err := rows.Scan(&dt, &n); err != nil {
			return nil, fmt.Errorf("failed to scan device count: %w", err)
		}
		out[dt] = n
	}
	return out, rows.Err()
}

// DistinctDates 出现过事件的所有日期
func (r *SQLiteEventsRepository) DistinctDates(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT event_date FROM erasure_events ORDER BY event_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct dates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DistinctDateEngineers 所有 (日期, 工程师) 组合，不含空 initials
func (r *SQLiteEventsRepository) DistinctDateEngineers(ctx context.Context) ([]DateEngineer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT event_date, engineer_initials FROM erasure_events
		 WHERE engineer_initials != ''
		 ORDER BY event_date, engineer_initials`)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct date/engineer pairs: %w", err)
	}
	defer rows.Close()

	var out []DateEngineer
	for rows.Next() {
		var de DateEngineer
		if err := rows.Scan(&de.Date, &de.EngineerInitials); err != nil {
			return nil, fmt.Errorf("failed to scan date/engineer pair: %w", err)
		}
		out = append(out, de)
	}
	return out, rows.Err()
}
