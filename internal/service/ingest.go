package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"erasure-report/internal/domain"
	"erasure-report/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 容错别名表：按优先级排序的候选键，大小写不敏感，第一个命中者生效。
// "Engineer Initals" 是上游 payload 里的历史拼写错误，必须继续接受。
var (
	initialsAliases = []string{"initials", "engineer initals", "engineer initials"}

	manufacturerAliases = []string{"manufacturer", "make", "vendor"}
	modelAliases        = []string{"model", "productname", "product name"}
	systemSerialAliases = []string{"systemserial", "serialnumber", "serial"}
	diskSerialAliases   = []string{"diskserial", "driveserial"}
	driveSizeAliases    = []string{"drivesize", "disksize", "diskcapacity", "capacity"}
	driveCountAliases   = []string{"drivecount", "diskcount", "drives"}
	driveTypeAliases    = []string{"drivetype", "disktype", "mediatype"}
)

// IngestResult webhook 受理结果
type IngestResult struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// IngestService 入库服务：校验、归一化、去重写入、触发增量汇总
type IngestService struct {
	events    repository.EventsRepository
	aggregate *AggregateService
	appliance ApplianceLookup // 可为 nil（未配置厂家 API）
	loc       *time.Location
	logger    *zap.Logger
}

// NewIngestService 创建入库服务
// loc 为报表时区：date/month 按此时区从事件时间派生
func NewIngestService(
	events repository.EventsRepository,
	aggregate *AggregateService,
	appliance ApplianceLookup,
	loc *time.Location,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		events:    events,
		aggregate: aggregate,
		appliance: appliance,
		loc:       loc,
		logger:    logger,
	}
}

// Ingest 处理一条擦除 webhook payload（凭证已由 handler 校验）
// 校验失败返回 *domain.ValidationError；重复投递不算错误，
// 返回 Duplicate=true 且不改动任何 rollup。
func (s *IngestService) Ingest(ctx context.Context, payload map[string]any) (*IngestResult, error) {
	kindStr := strings.ToLower(strings.TrimSpace(asString(lookupExact(payload, "event"))))
	kind := domain.EventKind(kindStr)
	if !domain.WebhookKinds[kind] {
		return nil, domain.NewValidationError("event", "must be success or failure")
	}

	jobID := strings.TrimSpace(asString(lookupExact(payload, "jobId")))
	if jobID == "" {
		return nil, domain.NewValidationError("jobId", "is required")
	}

	event := &domain.RawEvent{
		EventID:          uuid.New().String(),
		JobID:            jobID,
		Kind:             kind,
		EngineerInitials: strings.TrimSpace(asString(lookupAlias(payload, initialsAliases))),
		DurationSeconds:  asInt64(lookupAlias(payload, []string{"durationsec", "duration"})),
		DeviceType:       normalizeDeviceType(asString(lookupExact(payload, "deviceType"))),
	}
	if kind == domain.EventFailure {
		event.ErrorKind = strings.TrimSpace(asString(lookupAlias(payload, []string{"error", "errorkind", "failurereason"})))
	}

	s.resolveTimestamp(event, lookupExact(payload, "timestamp"))
	s.resolveDeviceDetails(ctx, event, payload)

	admitted, err := s.events.AdmitEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}
	if !admitted {
		// 重复投递：告知发送方成功，避免其无限重试
		s.logger.Info("Duplicate webhook delivery skipped",
			zap.String("job_id", event.JobID),
			zap.String("event_kind", string(event.Kind)),
		)
		return &IngestResult{Duplicate: true}, nil
	}

	if err := s.aggregate.ApplyEvent(ctx, event); err != nil {
		// 事件已入库，rollup 可随时通过 resync 重建
		s.logger.Error("Incremental rollup update failed",
			zap.String("job_id", event.JobID),
			zap.String("date", event.Date),
			zap.Error(err),
		)
	}

	s.logger.Info("Erasure event admitted",
		zap.String("event_id", event.EventID),
		zap.String("job_id", event.JobID),
		zap.String("event_kind", string(event.Kind)),
		zap.String("date", event.Date),
		zap.String("engineer", event.EngineerInitials),
	)
	return &IngestResult{EventID: event.EventID}, nil
}

// RecordOpsEvent 记录 booking/QA/connected 事件（运维端点）
// jobID 为空时生成 UUID；走同一条去重/汇总链路，保证 rollup 可由原始事件重建
func (s *IngestService) RecordOpsEvent(ctx context.Context, payload map[string]any) (*IngestResult, error) {
	kindStr := strings.ToLower(strings.TrimSpace(asString(lookupExact(payload, "event"))))
	kind := domain.EventKind(kindStr)
	if !domain.OpsKinds[kind] {
		return nil, domain.NewValidationError("event", "must be booked_in, qa_pass or connected")
	}

	jobID := strings.TrimSpace(asString(lookupExact(payload, "jobId")))
	if jobID == "" {
		jobID = uuid.New().String()
	}

	event := &domain.RawEvent{
		EventID:          uuid.New().String(),
		JobID:            jobID,
		Kind:             kind,
		EngineerInitials: strings.TrimSpace(asString(lookupAlias(payload, initialsAliases))),
		DeviceType:       normalizeDeviceType(asString(lookupExact(payload, "deviceType"))),
	}
	s.resolveTimestamp(event, lookupExact(payload, "timestamp"))

	admitted, err := s.events.AdmitEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}
	if !admitted {
		return &IngestResult{Duplicate: true}, nil
	}
	if err := s.aggregate.ApplyEvent(ctx, event); err != nil {
		s.logger.Error("Incremental rollup update failed",
			zap.String("job_id", event.JobID),
			zap.String("date", event.Date),
			zap.Error(err),
		)
	}
	return &IngestResult{EventID: event.EventID}, nil
}

// resolveTimestamp 解析事件时间；缺失或无法解析时用当前时间兜底
func (s *IngestService) resolveTimestamp(event *domain.RawEvent, raw any) {
	ts := parseTimestamp(raw)
	if ts.IsZero() {
		ts = time.Now()
	}
	local := ts.In(s.loc)
	event.OccurredAt = ts.UTC().Unix()
	event.Date = local.Format("2006-01-02")
	event.Month = local.Format("2006-01")
}

// resolveDeviceDetails 填充设备描述字段
// 优先级：payload 顶层别名 → 嵌套 deviceDetails 对象 → 厂家 API 回查。
// 回查失败不致命，字段留空。回查发生在任何写锁/事务之前。
func (s *IngestService) resolveDeviceDetails(ctx context.Context, event *domain.RawEvent, payload map[string]any) {
	sources := []map[string]any{payload}
	if nested, ok := lookupExact(payload, "deviceDetails").(map[string]any); ok {
		sources = append(sources, nested)
	}

	for _, src := range sources {
		if event.Manufacturer == "" {
			event.Manufacturer = strings.TrimSpace(asString(lookupAlias(src, manufacturerAliases)))
		}
		if event.Model == "" {
			event.Model = strings.TrimSpace(asString(lookupAlias(src, modelAliases)))
		}
		if event.SystemSerial == "" {
			event.SystemSerial = strings.TrimSpace(asString(lookupAlias(src, systemSerialAliases)))
		}
		if event.DiskSerial == "" {
			event.DiskSerial = strings.TrimSpace(asString(lookupAlias(src, diskSerialAliases)))
		}
		if event.DiskCapacityBytes == 0 {
			event.DiskCapacityBytes = asInt64(lookupAlias(src, driveSizeAliases))
		}
		if event.DriveCount == 0 {
			event.DriveCount = int(asInt64(lookupAlias(src, driveCountAliases)))
		}
		if event.DriveType == "" {
			event.DriveType = strings.TrimSpace(asString(lookupAlias(src, driveTypeAliases)))
		}
	}

	if event.Manufacturer != "" || event.Model != "" || s.appliance == nil {
		return
	}

	details, err := s.appliance.JobDetails(ctx, event.JobID)
	if err != nil {
		// downstream lookup failure is non-fatal
		s.logger.Warn("Appliance device-detail lookup failed",
			zap.String("job_id", event.JobID),
			zap.Error(err),
		)
		return
	}
	event.Manufacturer = details.Manufacturer
	event.Model = details.Model
	if event.SystemSerial == "" {
		event.SystemSerial = details.SystemSerial
	}
	if event.DiskSerial == "" {
		event.DiskSerial = details.DiskSerial
	}
	if event.DiskCapacityBytes == 0 {
		event.DiskCapacityBytes = details.DiskCapacityBytes
	}
	if event.DriveCount == 0 {
		event.DriveCount = details.DriveCount
	}
	if event.DriveType == "" {
		event.DriveType = details.DriveType
	}
}

// lookupExact 精确键查找（大小写不敏感）
func lookupExact(payload map[string]any, key string) any {
	return lookupAlias(payload, []string{key})
}

// lookupAlias 按优先级顺序查找候选键，大小写不敏感，第一个命中者生效
func lookupAlias(payload map[string]any, aliases []string) any {
	for _, alias := range aliases {
		for k, v := range payload {
			if strings.EqualFold(strings.TrimSpace(k), alias) {
				return v
			}
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// asInt64 防御性数值转换：非数值/缺失一律得 0
func asInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0
		}
		return int64(t)
	case int:
		if t < 0 {
			return 0
		}
		return int64(t)
	case int64:
		if t < 0 {
			return 0
		}
		return t
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

// parseTimestamp 接受 RFC3339、"2006-01-02 15:04:05"、Unix 秒数；解析失败返回零值
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
			return ts
		}
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil && epoch > 0 {
			return time.Unix(epoch, 0)
		}
		return time.Time{}
	case float64:
		if t <= 0 {
			return time.Time{}
		}
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}

// normalizeDeviceType 非法/未知设备类别归为空串（不拒绝整条事件）
func normalizeDeviceType(raw string) string {
	dt := domain.DeviceType(strings.ToLower(strings.TrimSpace(raw)))
	if domain.KnownDeviceTypes[dt] {
		return string(dt)
	}
	return ""
}
