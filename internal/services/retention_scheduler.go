package services

import (
	"fmt"
	"time"

	"fintrack/pkg/config"
	"fintrack/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RetentionScheduler 活动日志保留策略调度器
// 按配置的cron表达式定期清理保留期之外的日志
type RetentionScheduler struct {
	activity *ActivityService
	cron     *cron.Cron
	days     int
	running  bool
}

// NewRetentionScheduler 创建保留策略调度器
func NewRetentionScheduler() *RetentionScheduler {
	return &RetentionScheduler{
		activity: NewActivityService(),
		cron:     cron.New(),
		days:     config.GetConfig().Audit.RetentionDays,
	}
}

// Start 启动调度器
func (s *RetentionScheduler) Start() error {
	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	spec := config.GetConfig().Audit.PurgeCron
	_, err := s.cron.AddFunc(spec, s.purge)
	if err != nil {
		return fmt.Errorf("注册清理任务失败: %v", err)
	}

	s.cron.Start()
	s.running = true
	logger.GetLogger().Infof("活动日志保留策略调度器启动，保留%d天，表达式 %s", s.days, spec)
	return nil
}

// Stop 停止调度器
func (s *RetentionScheduler) Stop() {
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	logger.GetLogger().Info("活动日志保留策略调度器已停止")
}

// purge 执行一次清理
func (s *RetentionScheduler) purge() {
	cutoff := time.Now().AddDate(0, 0, -s.days)
	deleted, err := s.activity.PurgeBefore(cutoff)
	if err != nil {
		logger.GetLogger().Errorf("清理过期活动日志失败: %v", err)
		return
	}
	if deleted > 0 {
		logger.GetLogger().Infof("已清理 %d 条过期活动日志", deleted)
	}
}
