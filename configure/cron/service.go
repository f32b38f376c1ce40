package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/inject/logging"
	"github.com/robfig/cron/v3"
)

// options Cron 服务配置选项
type options struct {
	// Location 时区名称，默认 UTC，解析失败时回退到 UTC
	Location string
	// EnableSeconds 是否启用秒级精度（默认分钟级）
	EnableSeconds bool
	// Logger 自定义日志记录器
	Logger logging.Logger
	// EnableCronLogger 是否启用 cron 库的内部调度日志（默认 false）
	EnableCronLogger bool
}

// Service Cron 定时任务托管服务
// 作为托管服务随应用生命周期启停
type Service struct {
	cron   *cron.Cron
	logger logging.Logger

	mu   sync.RWMutex
	jobs map[string]cron.EntryID
}

// newService 创建 Cron 托管服务
func newService(logger logging.Logger, opts ...func(*options)) *Service {
	opt := &options{
		Location: "UTC",
		Logger:   logger,
	}
	for _, o := range opts {
		o(opt)
	}

	adapter := newCronLogger(opt.Logger)

	cronOpts := []cron.Option{
		cron.WithChain(cron.Recover(adapter)),
		cron.WithLocation(resolveLocation(opt.Location, opt.Logger)),
	}
	if opt.EnableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(adapter))
	}
	if opt.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	return &Service{
		cron:   cron.New(cronOpts...),
		logger: opt.Logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// resolveLocation 解析时区名称，无效时回退 UTC
func resolveLocation(name string, logger logging.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("Unknown cron location, falling back to UTC",
			logging.Field{Key: "location", Value: name})
		return time.UTC
	}
	return loc
}

// addJob 按 cron 表达式注册任务
// 执行前后各写一条日志，方便排查任务耗时和是否触发
func (s *Service) addJob(spec, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron job '%s' already registered", name)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("Cron job started", logging.Field{Key: "job", Value: name})
		defer s.logger.Info("Cron job completed", logging.Field{Key: "job", Value: name})
		job()
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job '%s': %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("Cron job registered",
		logging.Field{Key: "job", Value: name},
		logging.Field{Key: "spec", Value: spec})
	return nil
}

// removeJob 按名称摘除任务，不存在时静默返回
func (s *Service) removeJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.jobs[name]
	if !exists {
		return
	}
	s.cron.Remove(entryID)
	delete(s.jobs, name)
	s.logger.Info("Cron job removed", logging.Field{Key: "job", Value: name})
}

// Start 启动调度器并阻塞到上下文取消
func (s *Service) Start(ctx context.Context) error {
	s.mu.RLock()
	count := len(s.jobs)
	s.mu.RUnlock()

	s.logger.Info("Cron scheduler starting", logging.Field{Key: "jobs", Value: count})
	s.cron.Start()

	<-ctx.Done()
	return nil
}

// Stop 停止调度并等待正在运行的任务收尾
// ctx 先到期则放弃等待
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Cron scheduler stopping")

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Cron scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("Cron scheduler stop timed out, abandoning running jobs")
	}
	return nil
}

// cronLogger 把框架日志接口适配成 cron.Logger
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, pairsToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(pairsToFields(keysAndValues), logging.Field{Key: "error", Value: err.Error()})
	l.logger.Error(msg, fields...)
}

// pairsToFields 把 cron 的 key/value 平铺参数转成结构化字段，落单的尾巴丢弃
func pairsToFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{
			Key:   fmt.Sprintf("%v", keysAndValues[i]),
			Value: keysAndValues[i+1],
		})
	}
	return fields
}
