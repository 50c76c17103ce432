package httpapi

import (
	"net/http"

	"erasure-report/internal/service"

	"go.uber.org/zap"
)

// AdminHandler 维护操作入口
type AdminHandler struct {
	aggregate *service.AggregateService
	secret    string
	logger    *zap.Logger
}

func NewAdminHandler(aggregate *service.AggregateService, secret string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{aggregate: aggregate, secret: secret, logger: logger}
}

// HandleResync POST /admin/api/v1/resync
// 全量重算所有 rollup；幂等，任意时刻可调用
func (h *AdminHandler) HandleResync(w http.ResponseWriter, r *http.Request) {
	if !authorizeSecret(r, h.secret) {
		writeJSON(w, http.StatusUnauthorized, Fail("unauthorized"))
		return
	}

	if err := h.aggregate.Resync(r.Context()); err != nil {
		h.logger.Error("Rollup resync failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("resync failed"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"resynced": true}))
}
