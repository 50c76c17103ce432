package service

import (
	"context"
	"sync"

	"erasure-report/internal/domain"
	"erasure-report/internal/repository"

	"go.uber.org/zap"
)

// AggregateService 汇总引擎
// 两种模式：增量（单事件入库后只重算受影响的行）与全量 resync。
// 重算一律从 erasure_events 重新 COUNT，不做计数器累加，
// 重复投递/乱序投递不会让 rollup 与原始事件漂移。
type AggregateService struct {
	events  repository.EventsRepository
	rollups repository.RollupsRepository
	logger  *zap.Logger

	// 串行化 read-then-upsert（两个并发 webhook 命中同一 rollup 键时）
	mu sync.Mutex
}

// NewAggregateService 创建汇总引擎
func NewAggregateService(events repository.EventsRepository, rollups repository.RollupsRepository, logger *zap.Logger) *AggregateService {
	return &AggregateService{
		events:  events,
		rollups: rollups,
		logger:  logger,
	}
}

// ApplyEvent 增量模式：重算单个已入库事件影响的 rollup 行
func (s *AggregateService) ApplyEvent(ctx context.Context, event *domain.RawEvent) error {
	if err := s.RecomputeDate(ctx, event.Date); err != nil {
		return err
	}
	if event.EngineerInitials != "" {
		if err := s.RecomputeEngineer(ctx, event.Date, event.EngineerInitials); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeDate 重算某一天的 DailyRollup
func (s *AggregateService) RecomputeDate(ctx context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookedIn, err := s.events.CountByKind(ctx, date, domain.EventBookedIn)
	if err != nil {
		return err
	}
	erased, err := s.events.CountByKind(ctx, date, domain.EventSuccess)
	if err != nil {
		return err
	}
	qa, err := s.events.CountByKind(ctx, date, domain.EventQAPass)
	if err != nil {
		return err
	}

	return s.rollups.UpsertDailyRollup(ctx, &domain.DailyRollup{
		Date:     date,
		BookedIn: bookedIn,
		Erased:   erased,
		QA:       qa,
	})
}

// RecomputeEngineer 重算某 (天, 工程师) 的 EngineerRollup 与 EngineerDeviceRollup
func (s *AggregateService) RecomputeEngineer(ctx context.Context, date, initials string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	erased, err := s.events.CountSuccessByEngineer(ctx, date, initials)
	if err != nil {
		return err
	}
	if err := s.rollups.UpsertEngineerRollup(ctx, &domain.EngineerRollup{
		Date:             date,
		EngineerInitials: initials,
		Erased:           erased,
	}); err != nil {
		return err
	}

	byDevice, err := s.events.CountSuccessByEngineerDevice(ctx, date, initials)
	if err != nil {
		return err
	}
	for deviceType, count := range byDevice {
		if err := s.rollups.UpsertEngineerDeviceRollup(ctx, &domain.EngineerDeviceRollup{
			Date:             date,
			EngineerInitials: initials,
			DeviceType:       deviceType,
			Erased:           count,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Resync 全量模式：对 erasure_events 中出现过的所有日期与 (日期, 工程师) 组合重算
// 只做 upsert，从不删除：原始事件被人工清除后，不再对应任何事件的
// rollup 行会残留（沿用既有系统行为，待产品侧确认后再改）。
// 幂等，可在任意时刻调用；进程启动时会调用一次。
func (s *AggregateService) Resync(ctx context.Context) error {
	dates, err := s.events.DistinctDates(ctx)
	if err != nil {
		return err
	}
	for _, date := range dates {
		if err := s.RecomputeDate(ctx, date); err != nil {
			return err
		}
	}

	pairs, err := s.events.DistinctDateEngineers(ctx)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := s.RecomputeEngineer(ctx, p.Date, p.EngineerInitials); err != nil {
			return err
		}
	}

	s.logger.Info("Rollup resync complete",
		zap.Int("dates", len(dates)),
		zap.Int("engineer_pairs", len(pairs)),
	)
	return nil
}
