package httpapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"erasure-report/internal/repository"
	"erasure-report/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func setupTestRouter(t *testing.T) (*Router, *sql.DB) {
	t.Helper()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	events := repository.NewSQLiteEventsRepository(db)
	rollups := repository.NewSQLiteRollupsRepository(db)
	aggregate := service.NewAggregateService(events, rollups, logger)
	ingest := service.NewIngestService(events, aggregate, nil, time.UTC, logger)

	router := NewRouter(logger)
	router.RegisterWebhookRoutes(NewWebhookHandler(ingest, testSecret, logger))
	router.RegisterOpsRoutes(NewOpsHandler(ingest, testSecret, logger))
	router.RegisterReportRoutes(NewReportHandler(events, rollups, nil, 0, time.UTC, logger))
	router.RegisterAdminRoutes(NewAdminHandler(aggregate, testSecret, logger))
	return router, db
}

func postWebhook(t *testing.T, router *Router, payload map[string]any, setAuth func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook/api/v1/erasure", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if setAuth != nil {
		setAuth(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func bearerAuth(req *http.Request) { req.Header.Set("Authorization", "Bearer "+testSecret) }

func webhookPayload(jobID string) map[string]any {
	return map[string]any{
		"event":       "success",
		"jobId":       jobID,
		"initials":    "AB",
		"durationSec": 600,
		"deviceType":  "laptops_desktops",
		"timestamp":   "2026-02-03T10:00:00Z",
	}
}

func TestWebhook_BadCredential(t *testing.T) {
	router, db := setupTestRouter(t)

	rec := postWebhook(t, router, webhookPayload("J1"), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(t, router, webhookPayload("J1"), func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer wrong")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 凭证错误时即使 payload 合法也不得入库
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM erasure_events`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestWebhook_AcceptsBothCredentialForms(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postWebhook(t, router, webhookPayload("J1"), bearerAuth)
	assert.Equal(t, http.StatusOK, rec.Code)

	// 裸值 Authorization
	rec = postWebhook(t, router, webhookPayload("J2"), func(req *http.Request) {
		req.Header.Set("Authorization", testSecret)
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// 备用 header
	rec = postWebhook(t, router, webhookPayload("J3"), func(req *http.Request) {
		req.Header.Set("X-Webhook-Secret", testSecret)
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_ValidationFailures(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postWebhook(t, router, map[string]any{"event": "success"}, bearerAuth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(t, router, map[string]any{"event": "rebooted", "jobId": "J1"}, bearerAuth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_DuplicateAcknowledgedAsSuccess(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postWebhook(t, router, webhookPayload("X"), bearerAuth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postWebhook(t, router, webhookPayload("X"), bearerAuth)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope Result[service.IngestResult]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, ResultSuccess, envelope.Code)
	assert.True(t, envelope.Result.Duplicate)
}

func TestReportEndpoints_EndToEnd(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, job := range []string{"A1", "A2"} {
		rec := postWebhook(t, router, webhookPayload(job), bearerAuth)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	payload := webhookPayload("A3")
	payload["initials"] = "CD"
	rec := postWebhook(t, router, payload, bearerAuth)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/report/api/v1/daily?start=2026-02-03&end=2026-02-03", nil)
	recDaily := httptest.NewRecorder()
	router.ServeHTTP(recDaily, req)
	require.Equal(t, http.StatusOK, recDaily.Code)

	var daily Result[[]map[string]any]
	require.NoError(t, json.Unmarshal(recDaily.Body.Bytes(), &daily))
	require.Len(t, daily.Result, 1)
	assert.Equal(t, float64(3), daily.Result[0]["erased"])

	req = httptest.NewRequest(http.MethodGet, "/report/api/v1/engineers?start=2026-02-03&end=2026-02-03", nil)
	recEng := httptest.NewRecorder()
	router.ServeHTTP(recEng, req)
	require.Equal(t, http.StatusOK, recEng.Code)

	var engineers Result[[]map[string]any]
	require.NoError(t, json.Unmarshal(recEng.Body.Bytes(), &engineers))
	require.Len(t, engineers.Result, 2)
	assert.Equal(t, "AB", engineers.Result[0]["engineer_initials"])
	assert.Equal(t, float64(2), engineers.Result[0]["count"])
	assert.Equal(t, "CD", engineers.Result[1]["engineer_initials"])
	assert.Equal(t, float64(1), engineers.Result[1]["count"])

	req = httptest.NewRequest(http.MethodGet, "/report/api/v1/events?start=2026-02-03&end=2026-02-03&deviceType=laptops_desktops", nil)
	recEvents := httptest.NewRecorder()
	router.ServeHTTP(recEvents, req)
	require.Equal(t, http.StatusOK, recEvents.Code)

	var events Result[[]map[string]any]
	require.NoError(t, json.Unmarshal(recEvents.Body.Bytes(), &events))
	assert.Len(t, events.Result, 3)
}

func TestReportEndpoints_EmptyRangeReturnsEmptyList(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/report/api/v1/daily?start=1999-01-01&end=1999-01-31", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var daily Result[[]map[string]any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &daily))
	assert.Equal(t, ResultSuccess, daily.Code)
	assert.NotNil(t, daily.Result)
	assert.Empty(t, daily.Result)
}

func TestAdminResync(t *testing.T) {
	router, db := setupTestRouter(t)

	rec := postWebhook(t, router, webhookPayload("R1"), bearerAuth)
	require.Equal(t, http.StatusOK, rec.Code)

	// rollup 表被清空后 resync 可以完整重建
	_, err := db.Exec("DELETE FROM daily_rollups")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/api/v1/resync", nil)
	bearerAuth(req)
	recResync := httptest.NewRecorder()
	router.ServeHTTP(recResync, req)
	require.Equal(t, http.StatusOK, recResync.Code)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM daily_rollups`).Scan(&n))
	assert.Equal(t, 1, n)

	// 无凭证拒绝
	req = httptest.NewRequest(http.MethodPost, "/admin/api/v1/resync", nil)
	recDenied := httptest.NewRecorder()
	router.ServeHTTP(recDenied, req)
	assert.Equal(t, http.StatusUnauthorized, recDenied.Code)
}

func TestExcelExport(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postWebhook(t, router, webhookPayload("E1"), bearerAuth)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/report/api/v1/export.xlsx?start=2026-02-03&end=2026-02-03", nil)
	recExport := httptest.NewRecorder()
	router.ServeHTTP(recExport, req)
	require.Equal(t, http.StatusOK, recExport.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		recExport.Header().Get("Content-Type"),
	)
	assert.NotEmpty(t, recExport.Body.Bytes())
}

func TestOpsEndpoint(t *testing.T) {
	router, db := setupTestRouter(t)

	body, _ := json.Marshal(map[string]any{"event": "booked_in", "timestamp": "2026-02-03T08:00:00Z"})
	req := httptest.NewRequest(http.MethodPost, "/ops/api/v1/events", bytes.NewReader(body))
	bearerAuth(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var n int
	require.NoError(t, db.QueryRow(`SELECT booked_in FROM daily_rollups WHERE event_date = '2026-02-03'`).Scan(&n))
	assert.Equal(t, 1, n)

	body, _ = json.Marshal(map[string]any{"event": "success"})
	req = httptest.NewRequest(http.MethodPost, "/ops/api/v1/events", bytes.NewReader(body))
	bearerAuth(req)
	recBad := httptest.NewRecorder()
	router.ServeHTTP(recBad, req)
	assert.Equal(t, http.StatusBadRequest, recBad.Code)
}
