package httpapi

import (
	"errors"
	"net/http"

	"erasure-report/internal/domain"
	"erasure-report/internal/service"

	"go.uber.org/zap"
)

// WebhookHandler 擦除设备 webhook 入口
type WebhookHandler struct {
	ingest *service.IngestService
	secret string
	logger *zap.Logger
}

// NewWebhookHandler 创建 WebhookHandler
// secret 为共享密钥，由构造时注入（不读全局状态）
func NewWebhookHandler(ingest *service.IngestService, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingest: ingest,
		secret: secret,
		logger: logger,
	}
}

// HandleErasure POST /webhook/api/v1/erasure
// 凭证错误→401，payload 校验失败→400，存储失败→500；
// 重复投递按成功应答（发送方不应重试）。
func (h *WebhookHandler) HandleErasure(w http.ResponseWriter, r *http.Request) {
	if !authorizeSecret(r, h.secret) {
		h.logger.Warn("Webhook rejected: bad credential",
			zap.String("remote", r.RemoteAddr),
		)
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

	result, err := h.ingest.Ingest(r.Context(), payload)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, Fail(ve.Error()))
			return
		}
		h.logger.Error("Webhook ingestion failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to store event"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(result))
}
