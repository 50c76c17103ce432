package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"erasure-report/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DeviceDetails 厂家 API 返回的设备明细
type DeviceDetails struct {
	Manufacturer      string `json:"manufacturer"`
	Model             string `json:"model"`
	SystemSerial      string `json:"systemSerial"`
	DiskSerial        string `json:"diskSerial"`
	DiskCapacityBytes int64  `json:"diskCapacityBytes"`
	DriveCount        int    `json:"driveCount"`
	DriveType         string `json:"driveType"`
}

// ApplianceLookup 设备明细回查接口（webhook payload 没带设备字段时使用）
type ApplianceLookup interface {
	JobDetails(ctx context.Context, jobID string) (*DeviceDetails, error)
}

// applianceResponse 厂家 API 响应封装
type applianceResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// ApplianceClient 擦除设备厂家 API 客户端
type ApplianceClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewApplianceClient 创建厂家 API 客户端
// 超时由配置限定：回查不允许无限期阻塞 webhook 请求
func NewApplianceClient(cfg config.ApplianceConfig, logger *zap.Logger) *ApplianceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &ApplianceClient{
		httpClient: client,
		logger:     logger,
	}
}

var _ ApplianceLookup = (*ApplianceClient)(nil)

// JobDetails 按 job_id 回查设备明细
func (c *ApplianceClient) JobDetails(ctx context.Context, jobID string) (*DeviceDetails, error) {
	var response applianceResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&response).
		SetPathParam("jobId", jobID).
		Get("/api/v1/jobs/{jobId}")
	if err != nil {
		return nil, fmt.Errorf("failed to call appliance API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("appliance API returned HTTP %d", resp.StatusCode())
	}
	if response.Status != 0 {
		return nil, fmt.Errorf("appliance API error: %s (status: %d)", response.Msg, response.Status)
	}

	var details DeviceDetails
	if err := json.Unmarshal(response.Data, &details); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job details: %w", err)
	}

	c.logger.Debug("Retrieved device details from appliance API",
		zap.String("job_id", jobID),
		zap.String("manufacturer", details.Manufacturer),
		zap.String("model", details.Model),
	)
	return &details, nil
}
