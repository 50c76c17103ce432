package repository

import (
	"context"
	"database/sql"
	"fmt"

	"erasure-report/internal/domain"
)

// SQLiteRollupsRepository 汇总表 Repository 实现
type SQLiteRollupsRepository struct {
	db *sql.DB
}

// NewSQLiteRollupsRepository 创建汇总表 Repository
func NewSQLiteRollupsRepository(db *sql.DB) *SQLiteRollupsRepository {
	return &SQLiteRollupsRepository{db: db}
}

// 确保实现了接口
var _ RollupsRepository = (*SQLiteRollupsRepository)(nil)

// UpsertDailyRollup 按 event_date 整行替换
func (r *SQLiteRollupsRepository) UpsertDailyRollup(ctx context.Context, rollup *domain.DailyRollup) error {
	if rollup.Date == "" {
		return fmt.Errorf("date is required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_rollups (event_date, booked_in, erased, qa)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (event_date) DO UPDATE SET
		   booked_in = excluded.booked_in,
		   erased = excluded.erased,
		   qa = excluded.qa`,
		rollup.Date, rollup.BookedIn, rollup.Erased, rollup.QA,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily rollup: %w", err)
	}
	return nil
}

// UpsertEngineerRollup 按 (event_date, engineer_initials) 整行替换
func (r *SQLiteRollupsRepository) UpsertEngineerRollup(ctx context.Context, rollup *domain.EngineerRollup) error {
	if rollup.Date == "" || rollup.EngineerInitials == "" {
		return fmt.Errorf("date and engineer_initials are required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO engineer_rollups (event_date, engineer_initials, erased)
		 VALUES (?, ?, ?)
		 ON CONFLICT (event_date, engineer_initials) DO UPDATE SET
		   erased = excluded.erased`,
		rollup.Date, rollup.EngineerInitials, rollup.Erased,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert engineer rollup: %w", err)
	}
	return nil
}

// UpsertEngineerDeviceRollup 按 (event_date, engineer_initials, device_type) 整行替换
func (r *SQLiteRollupsRepository) UpsertEngineerDeviceRollup(ctx context.Context, rollup *domain.EngineerDeviceRollup) error {
	if rollup.Date == "" || rollup.EngineerInitials == "" {
		return fmt.Errorf("date and engineer_initials are required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO engineer_device_rollups (event_date, engineer_initials, device_type, erased)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (event_date, engineer_initials, device_type) DO UPDATE SET
		   erased = excluded.erased`,
		rollup.Date, rollup.EngineerInitials, rollup.DeviceType, rollup.Erased,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert engineer device rollup: %w", err)
	}
	return nil
}

// ListDailyRollups 按日期区间（含两端）查询
func (r *SQLiteRollupsRepository) ListDailyRollups(ctx context.Context, startDate, endDate string) ([]*domain.DailyRollup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_date, booked_in, erased, qa FROM daily_rollups
		 WHERE event_date >= ? AND event_date <= ?
		 ORDER BY event_date`,
		startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily rollups: %w", err)
	}
	defer rows.Close()

	var out []*domain.DailyRollup
	for rows.Next() {
		var dr domain.DailyRollup
		if err := rows.Scan(&dr.Date, &dr.BookedIn, &dr.Erased, &dr.QA); err != nil {
			return nil, fmt.Errorf("failed to scan daily rollup: %w", err)
		}
		out = append(out, &dr)
	}
	return out, rows.Err()
}

// ListEngineerRollups 按日期区间（含两端）查询
func (r *SQLiteRollupsRepository) ListEngineerRollups(ctx context.Context, startDate, endDate string) ([]*domain.EngineerRollup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_date, engineer_initials, erased FROM engineer_rollups
		 WHERE event_date >= ? AND event_date <= ?
		 ORDER BY event_date, engineer_initials`,
		startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list engineer rollups: %w", err)
	}
	defer rows.Close()

	var out []*domain.EngineerRollup
	for rows.Next() {
		var er domain.EngineerRollup
		if err := rows.Scan(&er.Date, &er.EngineerInitials, &er.Erased); err != nil {
			return nil, fmt.Errorf("failed to scan engineer rollup: %w", err)
		}
		out = append(out, &er)
	}
	return out, rows.Err()
}

// ListEngineerDeviceRollups 按日期区间（含两端）查询
func (r *SQLiteRollupsRepository) ListEngineerDeviceRollups(ctx context.Context, startDate, endDate string) ([]*domain.EngineerDeviceRollup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_date, engineer_initials, device_type, erased FROM engineer_device_rollups
		 WHERE event_date >= ? AND event_date <= ?
		 ORDER BY event_date, engineer_initials, device_type`,
		startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list engineer device rollups: %w", err)
	}
	defer rows.Close()

	var out []*domain.EngineerDeviceRollup
	for rows.Next() {
		var er domain.EngineerDeviceRollup
		if err := rows.Scan(&er.Date, &er.EngineerInitials, &er.DeviceType, &er.Erased); err != nil {
			return nil, fmt.Errorf("failed to scan engineer device rollup: %w", err)
		}
		out = append(out, &er)
	}
	return out, rows.Err()
}
