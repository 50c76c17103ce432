package repository

import (
	"context"

	"erasure-report/internal/domain"
)

// DateEngineer 出现在 RawEvent 中的 (日期, 工程师) 组合
type DateEngineer struct {
	Date             string
	EngineerInitials string
}

// EventsRepository 擦除事件 Repository 接口
// 使用强类型领域模型，不使用 map[string]any
// 设计原则：Repository 层只负责数据访问；聚合口径由 service 层决定
type EventsRepository interface {
	// ========== 写入接口 ==========

	// AdmitEvent 原子去重写入：seen_jobs 台账与 erasure_events 在同一事务内落库
	// 返回 false 表示 (job_id, event_kind) 已存在，未写入任何行
	AdmitEvent(ctx context.Context, event *domain.RawEvent) (bool, error)

	// ========== 查询接口 ==========

	// ListEvents 按日期区间（含两端）查询，deviceType 为空表示不过滤
	ListEvents(ctx context.Context, startDate, endDate, deviceType string) ([]*domain.RawEvent, error)

	// CountByKind 某天某事件类型的数量（rollup 重算口径）
	CountByKind(ctx context.Context, date string, kind domain.EventKind) (int, error)

	// CountSuccessByEngineer 某天某工程师的成功擦除数
	CountSuccessByEngineer(ctx context.Context, date, initials string) (int, error)

	// CountSuccessByEngineerDevice 某天某工程师按设备类别分组的成功擦除数
	CountSuccessByEngineerDevice(ctx context.Context, date, initials string) (map[string]int, error)

	// DistinctDates 全量重算用：出现过事件的所有日期
	DistinctDates(ctx context.Context) ([]string, error)

	// DistinctDateEngineers 全量重算用：所有 (日期, 工程师) 组合（不含空 initials）
	DistinctDateEngineers(ctx context.Context) ([]DateEngineer, error)
}

// RollupsRepository 汇总表 Repository 接口
// 所有写入都是按自然键的 upsert（create-or-replace），从不做增量累加
type RollupsRepository interface {
	UpsertDailyRollup(ctx context.Context, r *domain.DailyRollup) error
	UpsertEngineerRollup(ctx context.Context, r *domain.EngineerRollup) error
	UpsertEngineerDeviceRollup(ctx context.Context, r *domain.EngineerDeviceRollup) error

	ListDailyRollups(ctx context.Context, startDate, endDate string) ([]*domain.DailyRollup, error)
	ListEngineerRollups(ctx context.Context, startDate, endDate string) ([]*domain.EngineerRollup, error)
	ListEngineerDeviceRollups(ctx context.Context, startDate, endDate string) ([]*domain.EngineerDeviceRollup, error)
}
