package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 1 << 20 // 1MB

// authorizeSecret 校验共享密钥
// 兼容两种发送方：Authorization（可带 Bearer 前缀，也接受裸值）
// 与 X-Webhook-Secret（裸值）
func authorizeSecret(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		auth = strings.TrimSpace(after)
	}
	if auth == secret {
		return true
	}
	return strings.TrimSpace(r.Header.Get("X-Webhook-Secret")) == secret
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// parseDateRange 解析 ?start=YYYY-MM-DD&end=YYYY-MM-DD
// 缺省为报表时区下截止今天的最近 30 天（含两端）
func parseDateRange(r *http.Request, loc *time.Location) (string, string) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	validate := func(s string) string {
		if _, err := time.ParseInLocation("2006-01-02", s, loc); err != nil {
			return ""
		}
		return s
	}
	if start != "" {
		start = validate(start)
	}
	if end != "" {
		end = validate(end)
	}

	now := time.Now().In(loc)
	if end == "" {
		end = now.Format("2006-01-02")
	}
	if start == "" {
		start = now.AddDate(0, 0, -29).Format("2006-01-02")
	}
	return start, end
}
