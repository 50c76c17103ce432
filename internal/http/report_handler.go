package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"erasure-report/internal/domain"
	"erasure-report/internal/repository"
	"erasure-report/internal/store"

	"go.uber.org/zap"
)

// ReportHandler 报表读端点（dashboard / Excel 导出 / Power BI 取数）
// 空区间返回空列表而不是错误
type ReportHandler struct {
	events   repository.EventsRepository
	rollups  repository.RollupsRepository
	kv       store.KV // 可为 nil（未启用缓存）
	cacheTTL time.Duration
	loc      *time.Location
	logger   *zap.Logger
}

func NewReportHandler(
	events repository.EventsRepository,
	rollups repository.RollupsRepository,
	kv store.KV,
	cacheTTL time.Duration,
	loc *time.Location,
	logger *zap.Logger,
) *ReportHandler {
	return &ReportHandler{
		events:   events,
		rollups:  rollups,
		kv:       kv,
		cacheTTL: cacheTTL,
		loc:      loc,
		logger:   logger,
	}
}

// GetDailyRollups GET /report/api/v1/daily?start=&end=
func (h *ReportHandler) GetDailyRollups(w http.ResponseWriter, r *http.Request) {
	start, end := parseDateRange(r, h.loc)
	rows, err := h.rollups.ListDailyRollups(r.Context(), start, end)
	if err != nil {
		h.logger.Error("ListDailyRollups failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("query failed"))
		return
	}
	if rows == nil {
		rows = []*domain.DailyRollup{}
	}
	writeJSON(w, http.StatusOK, Ok(rows))
}

// GetRawEvents GET /report/api/v1/events?start=&end=&deviceType=
func (h *ReportHandler) GetRawEvents(w http.ResponseWriter, r *http.Request) {
	start, end := parseDateRange(r, h.loc)
	deviceType := r.URL.Query().Get("deviceType")
	rows, err := h.events.ListEvents(r.Context(), start, end, deviceType)
	if err != nil {
		h.logger.Error("ListEvents failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("query failed"))
		return
	}
	if rows == nil {
		rows = []*domain.RawEvent{}
	}
	writeJSON(w, http.StatusOK, Ok(rows))
}

// GetEngineerRollups GET /report/api/v1/engineers?start=&end=
func (h *ReportHandler) GetEngineerRollups(w http.ResponseWriter, r *http.Request) {
	start, end := parseDateRange(r, h.loc)
	rows, err := h.rollups.ListEngineerRollups(r.Context(), start, end)
	if err != nil {
		h.logger.Error("ListEngineerRollups failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("query failed"))
		return
	}
	if rows == nil {
		rows = []*domain.EngineerRollup{}
	}
	writeJSON(w, http.StatusOK, Ok(rows))
}

// PowerBIDataset Power BI 取数模型：一次请求返回三组数据
type PowerBIDataset struct {
	Daily           []*domain.DailyRollup          `json:"daily"`
	Engineers       []*domain.EngineerRollup       `json:"engineers"`
	EngineerDevices []*domain.EngineerDeviceRollup `json:"engineerDevices"`
	Events          []*domain.RawEvent             `json:"events"`
}

// GetPowerBIDataset GET /report/api/v1/powerbi/dataset?start=&end=
// 启用缓存时整包短 TTL 缓存（读侧允许轻微滞后）
func (h *ReportHandler) GetPowerBIDataset(w http.ResponseWriter, r *http.Request) {
	start, end := parseDateRange(r, h.loc)
	cacheKey := fmt.Sprintf("report:powerbi:%s:%s", start, end)

	if h.kv != nil {
		if cached, err := h.kv.Get(r.Context(), cacheKey); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cached))
			return
		} else if err != store.ErrMiss {
			h.logger.Warn("Report cache read failed", zap.Error(err))
		}
	}

	dataset, err := h.buildDataset(r.Context(), start, end)
	if err != nil {
		h.logger.Error("Power BI dataset query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("query failed"))
		return
	}

	envelope := Ok(dataset)
	if h.kv != nil {
		if body, err := json.Marshal(envelope); err == nil {
			if err := h.kv.Set(r.Context(), cacheKey, string(body), h.cacheTTL); err != nil {
				h.logger.Warn("Report cache write failed", zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, envelope)
}

func (h *ReportHandler) buildDataset(ctx context.Context, start, end string) (*PowerBIDataset, error) {
	daily, err := h.rollups.ListDailyRollups(ctx, start, end)
	if err != nil {
		return nil, err
	}
	engineers, err := h.rollups.ListEngineerRollups(ctx, start, end)
	if err != nil {
		return nil, err
	}
	engineerDevices, err := h.rollups.ListEngineerDeviceRollups(ctx, start, end)
	if err != nil {
		return nil, err
	}
	events, err := h.events.ListEvents(ctx, start, end, "")
	if err != nil {
		return nil, err
	}

	ds := &PowerBIDataset{
		Daily:           daily,
		Engineers:       engineers,
		EngineerDevices: engineerDevices,
		Events:          events,
	}
	if ds.Daily == nil {
		ds.Daily = []*domain.DailyRollup{}
	}
	if ds.Engineers == nil {
		ds.Engineers = []*domain.EngineerRollup{}
	}
	if ds.EngineerDevices == nil {
		ds.EngineerDevices = []*domain.EngineerDeviceRollup{}
	}
	if ds.Events == nil {
		ds.Events = []*domain.RawEvent{}
	}
	return ds, nil
}

// ExportExcel GET /report/api/v1/export.xlsx?start=&end=
func (h *ReportHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	start, end := parseDateRange(r, h.loc)
	dataset, err := h.buildDataset(r.Context(), start, end)
	if err != nil {
		h.logger.Error("Excel export query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("query failed"))
		return
	}

	data, err := GenerateReportWorkbook(dataset)
	if err != nil {
		h.logger.Error("Excel export generation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("export failed"))
		return
	}

	filename := fmt.Sprintf("erasure-report_%s_%s.xlsx", start, end)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
