package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/inject/logging"
)

// HostedService 托管服务接口
// 框架负责在 goroutine 中调用 Start，实现方不要自己起 goroutine
type HostedService interface {
	// Start 运行服务主循环，阻塞到 ctx 取消或出错为止
	Start(ctx context.Context) error

	// Stop 执行额外的清理工作
	// Start 的 ctx 取消时服务应当已经自行退出，Stop 只做收尾
	Stop(ctx context.Context) error
}

// HostedServiceManager 统一管理一组托管服务的启停
type HostedServiceManager struct {
	services []HostedService
	logger   logging.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	return &HostedServiceManager{logger: logger}
}

// Add 添加托管服务
func (m *HostedServiceManager) Add(service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, service)
}

// StartAll 并发启动所有托管服务
// 返回的通道收集真正的启动失败；ctx 取消导致的退出不算错误
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errCh := make(chan error, len(m.services))
	m.logger.Info("Starting hosted services",
		logging.Field{Key: "count", Value: len(m.services)})

	for i, service := range m.services {
		m.wg.Add(1)
		go m.runService(ctx, i+1, service, errCh)
	}

	return errCh
}

func (m *HostedServiceManager) runService(ctx context.Context, id int, svc HostedService, errCh chan<- error) {
	defer m.wg.Done()

	m.logger.Debug("Hosted service starting",
		logging.Field{Key: "service", Value: id})

	err := svc.Start(ctx)
	switch {
	case err == nil:
		m.logger.Info("Hosted service completed",
			logging.Field{Key: "service", Value: id})
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		m.logger.Debug("Hosted service stopped (context done)",
			logging.Field{Key: "service", Value: id})
	default:
		m.logger.Error("Hosted service failed",
			logging.Field{Key: "service", Value: id},
			logging.Field{Key: "error", Value: err.Error()})
		// 缓冲区按服务数预留，这里不会阻塞
		errCh <- err
	}
}

// StopAll 并发停止所有托管服务，全部结束后返回
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info("Stopping hosted services",
		logging.Field{Key: "count", Value: len(m.services)})

	var wg sync.WaitGroup
	for i, service := range m.services {
		wg.Add(1)
		go func(id int, svc HostedService) {
			defer wg.Done()
			if err := svc.Stop(ctx); err != nil {
				m.logger.Error("Hosted service stop failed",
					logging.Field{Key: "service", Value: id},
					logging.Field{Key: "error", Value: err.Error()})
				return
			}
			m.logger.Debug("Hosted service stopped",
				logging.Field{Key: "service", Value: id})
		}(i+1, service)
	}
	wg.Wait()

	m.logger.Info("All hosted services stopped")
	return nil
}

// Wait 等待所有 Start goroutine 退出
func (m *HostedServiceManager) Wait() {
	m.wg.Wait()
}

// BackgroundService 可嵌入的后台服务底座
// 提供停止信号与完成通知，子类在主循环里监听 StopChan
type BackgroundService struct {
	name     string
	logger   logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	doneOnce sync.Once
}

// NewBackgroundService 创建后台服务
func NewBackgroundService(name string, logger logging.Logger) *BackgroundService {
	return &BackgroundService{
		name:   name,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start 默认主循环：阻塞到停止信号或 ctx 取消
func (s *BackgroundService) Start(ctx context.Context) error {
	s.logger.Info(fmt.Sprintf("BackgroundService '%s' starting", s.name))

	select {
	case <-s.stopCh:
	case <-ctx.Done():
	}

	s.Done()
	return nil
}

// Stop 发出停止信号并等待主循环退出
func (s *BackgroundService) Stop(ctx context.Context) error {
	s.logger.Info(fmt.Sprintf("BackgroundService '%s' stopping", s.name))
	close(s.stopCh)

	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		s.logger.Warn(fmt.Sprintf("BackgroundService '%s' stop timeout", s.name))
		return ctx.Err()
	}
}

// ShouldStop 查询是否已收到停止信号
func (s *BackgroundService) ShouldStop() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// StopChan 返回停止通道，供主循环 select 监听
func (s *BackgroundService) StopChan() <-chan struct{} {
	return s.stopCh
}

// Done 标记主循环已退出，可安全重复调用
func (s *BackgroundService) Done() {
	s.doneOnce.Do(func() {
		close(s.doneCh)
	})
}

// TimedHostedService 按固定间隔执行任务的托管服务
type TimedHostedService struct {
	*BackgroundService
	interval time.Duration
	task     func(ctx context.Context) error
}

// NewTimedHostedService 创建定时托管服务
func NewTimedHostedService(name string, interval time.Duration, task func(ctx context.Context) error, logger logging.Logger) *TimedHostedService {
	return &TimedHostedService{
		BackgroundService: NewBackgroundService(name, logger),
		interval:          interval,
		task:              task,
	}
}

// Start 运行定时循环
// 单个任务失败只记日志，循环继续
func (s *TimedHostedService) Start(ctx context.Context) error {
	s.logger.Info(fmt.Sprintf("TimedHostedService '%s' running with interval %v", s.name, s.interval))
	defer s.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.task(ctx); err != nil {
				s.logger.Error(fmt.Sprintf("TimedHostedService '%s' task failed", s.name),
					logging.Field{Key: "error", Value: err.Error()})
			}
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
