package worker

import (
	"context"
	"time"

	"github.com/schoolpay-next/internal/cache"
	"github.com/schoolpay-next/internal/logger"

	"github.com/google/uuid"
)

const (
	defaultOverdueSweepInterval = 10 * time.Minute
	sweepLockMinTTL             = 30 * time.Second
)

// sweepJob 周期任务，多实例部署时通过分布式锁保证同一时刻只有一个实例执行
type sweepJob struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// SweepService 周期扫描服务：风控重试与欠费状态刷新
type SweepService struct {
	name  string
	owner string
	jobs  []sweepJob
}

// NewSweepService 创建周期扫描服务，不依赖队列是否启用
func NewSweepService(consumer *Consumer) *SweepService {
	svc := &SweepService{
		name:  "sweeper",
		owner: uuid.NewString(),
	}
	if consumer == nil || consumer.Container == nil {
		return svc
	}
	if fraudSvc := consumer.FraudService; fraudSvc != nil {
		svc.jobs = append(svc.jobs, sweepJob{
			name:     "fraud_retry",
			interval: fraudSvc.RetryInterval(),
			run: func(ctx context.Context) error {
				processed, err := fraudSvc.SweepQueued(ctx)
				if processed > 0 {
					logger.Infow("worker_fraud_sweep_done", "processed", processed)
				}
				return err
			},
		})
	}
	if feeSvc := consumer.FeeService; feeSvc != nil {
		interval := defaultOverdueSweepInterval
		if consumer.Config != nil && consumer.Config.Fee.OverdueSweepIntervalSeconds > 0 {
			interval = time.Duration(consumer.Config.Fee.OverdueSweepIntervalSeconds) * time.Second
		}
		svc.jobs = append(svc.jobs, sweepJob{
			name:     "fee_overdue",
			interval: interval,
			run: func(ctx context.Context) error {
				marked, err := feeSvc.RefreshOverdue(ctx)
				if marked > 0 {
					logger.Infow("worker_overdue_sweep_done", "marked", marked)
				}
				return err
			},
		})
	}
	return svc
}

// Name 服务名称
func (s *SweepService) Name() string {
	if s == nil || s.name == "" {
		return "sweeper"
	}
	return s.name
}

// Start 启动全部周期任务，阻塞到 ctx 结束
func (s *SweepService) Start(ctx context.Context) error {
	if s == nil || len(s.jobs) == 0 {
		<-ctx.Done()
		return nil
	}
	done := make(chan struct{}, len(s.jobs))
	for _, job := range s.jobs {
		go func(job sweepJob) {
			defer func() { done <- struct{}{} }()
			s.loop(ctx, job)
		}(job)
	}
	for range s.jobs {
		<-done
	}
	return nil
}

// Stop 停止服务，循环随 ctx 退出
func (s *SweepService) Stop(_ context.Context) error {
	return nil
}

func (s *SweepService) loop(ctx context.Context, job sweepJob) {
	s.runOnce(ctx, job)
	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

// runOnce 获取锁后执行一次，返回是否实际执行
func (s *SweepService) runOnce(ctx context.Context, job sweepJob) bool {
	lockKey := sweepLockKey(job.name)
	acquired, err := cache.TryLock(ctx, lockKey, s.owner, sweepLockTTL(job.interval))
	if err != nil {
		logger.Warnw("worker_sweep_lock_failed", "job", job.name, "error", err)
		return false
	}
	if !acquired {
		logger.Debugw("worker_sweep_skip_locked", "job", job.name)
		return false
	}
	defer func() {
		if err := cache.Unlock(context.Background(), lockKey, s.owner); err != nil {
			logger.Warnw("worker_sweep_unlock_failed", "job", job.name, "error", err)
		}
	}()
	if err := job.run(ctx); err != nil {
		logger.Warnw("worker_sweep_failed", "job", job.name, "error", err)
	}
	return true
}

func sweepLockKey(name string) string {
	return "worker:sweep:" + name
}

func sweepLockTTL(interval time.Duration) time.Duration {
	if interval < sweepLockMinTTL {
		return sweepLockMinTTL
	}
	return interval
}
