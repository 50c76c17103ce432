package repository

import (
	"context"
	"database/sql"
	"testing"

	"erasure-report/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockEventsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SQLiteEventsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewSQLiteEventsRepository(db)
	return db, mock, repo
}

func testEvent() *domain.RawEvent {
	return &domain.RawEvent{
		EventID:          "e-1",
		JobID:            "J1",
		Kind:             domain.EventSuccess,
		OccurredAt:       1770112800,
		Date:             "2026-02-03",
		Month:            "2026-02",
		DeviceType:       "laptops_desktops",
		EngineerInitials: "AB",
		DurationSeconds:  600,
		CreatedAt:        1770112801,
	}
}

func TestAdmitEvent_Success(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO seen_jobs`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO erasure_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	admitted, err := repo.AdmitEvent(context.Background(), testEvent())

	require.NoError(t, err)
	assert.True(t, admitted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitEvent_DuplicateRollsBack(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectBegin()
	// seen_jobs 冲突：0 行写入，事件不得入库
	mock.ExpectExec(`INSERT INTO seen_jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	admitted, err := repo.AdmitEvent(context.Background(), testEvent())

	require.NoError(t, err)
	assert.False(t, admitted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitEvent_EventInsertFailureRollsBack(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO seen_jobs`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO erasure_events`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	admitted, err := repo.AdmitEvent(context.Background(), testEvent())

	assert.Error(t, err)
	assert.False(t, admitted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmitEvent_MissingJobID(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	ev := testEvent()
	ev.JobID = ""
	admitted, err := repo.AdmitEvent(context.Background(), ev)

	assert.Error(t, err)
	assert.False(t, admitted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEvents_DeviceTypeFilter(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"event_id", "job_id", "event_kind", "occurred_at", "event_date", "event_month",
		"device_type", "engineer_initials", "duration_seconds", "error_kind",
		"manufacturer", "model", "system_serial", "disk_serial",
		"disk_capacity_bytes", "drive_count", "drive_type", "created_at",
	}).AddRow(
		"e-1", "J1", "success", 1770112800, "2026-02-03", "2026-02",
		"servers", "AB", 600, "",
		"Dell", "R740", "SN1", "DSK1",
		512000000000, 8, "SSD", 1770112801,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("2026-02-01", "2026-02-28", "servers").
		WillReturnRows(rows)

	events, err := repo.ListEvents(context.Background(), "2026-02-01", "2026-02-28", "servers")

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "J1", events[0].JobID)
	assert.Equal(t, domain.EventSuccess, events[0].Kind)
	assert.Equal(t, "servers", events[0].DeviceType)
	assert.Equal(t, 8, events[0].DriveCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByKind(t *testing.T) {
	db, mock, repo := setupMockEventsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("2026-02-03", "success").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountByKind(context.Background(), "2026-02-03", domain.EventSuccess)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
