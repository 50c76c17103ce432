package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterWebhookRoutes 擦除设备回调
func (r *Router) RegisterWebhookRoutes(h *WebhookHandler) {
	r.Handle("/webhook/api/v1/erasure", requireMethod(http.MethodPost, h.HandleErasure))
}

// RegisterOpsRoutes booking/QA 流程事件上报
func (r *Router) RegisterOpsRoutes(h *OpsHandler) {
	r.Handle("/ops/api/v1/events", requireMethod(http.MethodPost, h.HandleOpsEvent))
}

// RegisterReportRoutes 报表读端点（dashboard / Power BI / Excel 导出）
func (r *Router) RegisterReportRoutes(h *ReportHandler) {
	r.Handle("/report/api/v1/daily", requireMethod(http.MethodGet, h.GetDailyRollups))
	r.Handle("/report/api/v1/events", requireMethod(http.MethodGet, h.GetRawEvents))
	r.Handle("/report/api/v1/engineers", requireMethod(http.MethodGet, h.GetEngineerRollups))
	r.Handle("/report/api/v1/powerbi/dataset", requireMethod(http.MethodGet, h.GetPowerBIDataset))
	r.Handle("/report/api/v1/export.xlsx", requireMethod(http.MethodGet, h.ExportExcel))
}

// RegisterAdminRoutes 维护操作
func (r *Router) RegisterAdminRoutes(h *AdminHandler) {
	r.Handle("/admin/api/v1/resync", requireMethod(http.MethodPost, h.HandleResync))
}
