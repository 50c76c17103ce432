package config

import (
	"os"
	"strconv"
	"time"
)

// Config erasure-report（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database struct {
		Path string // 单一 SQLite 文件
	}
	Webhook struct {
		Secret string // 共享密钥（Bearer 或 X-Webhook-Secret 原值）
	}
	Report struct {
		Timezone string // 报表时区（date/month 按此时区派生）
	}
	Appliance ApplianceConfig
	Cache     CacheConfig
	Log       struct {
		Level  string
		Format string
	}
}

// ApplianceConfig 擦除设备厂家 API 配置（设备明细回查）
type ApplianceConfig struct {
	BaseURL string        // 为空则禁用回查
	APIKey  string
	Timeout time.Duration
}

// CacheConfig Redis 报表缓存配置（可选）
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Path = getEnv("DB_PATH", "erasure-report.db")
	cfg.Webhook.Secret = getEnv("WEBHOOK_SECRET", "")
	cfg.Report.Timezone = getEnv("REPORT_TZ", "Europe/London")

	cfg.Appliance.BaseURL = getEnv("APPLIANCE_BASE_URL", "")
	cfg.Appliance.APIKey = getEnv("APPLIANCE_API_KEY", "")
	cfg.Appliance.Timeout = parseDuration(getEnv("APPLIANCE_TIMEOUT", "5s"), 5*time.Second)

	cfg.Cache.Enabled = getEnv("CACHE_ENABLED", "false") == "true"
	cfg.Cache.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Cache.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Cache.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Cache.TTL = parseDuration(getEnv("CACHE_TTL", "30s"), 30*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
