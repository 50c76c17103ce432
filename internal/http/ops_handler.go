package httpapi

import (
	"errors"
	"net/http"

	"erasure-report/internal/domain"
	"erasure-report/internal/service"

	"go.uber.org/zap"
)

// OpsHandler 仓库 booking/QA 流程的事件上报入口
// 与 webhook 共用密钥与入库链路；DailyRollup 的 booked_in/qa 列来自这里的事件
type OpsHandler struct {
	ingest *service.IngestService
	secret string
	logger *zap.Logger
}

func NewOpsHandler(ingest *service.IngestService, secret string, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{ingest: ingest, secret: secret, logger: logger}
}

// HandleOpsEvent POST /ops/api/v1/events
// body: {event: booked_in|qa_pass|connected, jobId?, initials?, deviceType?, timestamp?}
func (h *OpsHandler) HandleOpsEvent(w http.ResponseWriter, r *http.Request) {
	if !authorizeSecret(r, h.secret) {
		writeJSON(w, http.StatusUnauthorized, Fail("unauthorized"))
		return
	}

	var payload map[string]any
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}
	if payload == nil {
		writeJSON(w, http.StatusBadRequest, Fail("empty body"))
		return
	}

	result, err := h.ingest.RecordOpsEvent(r.Context(), payload)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, Fail(ve.Error()))
			return
		}
		h.logger.Error("Ops event ingestion failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to store event"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(result))
}
