package cron

import (
	"fmt"

	confcron "github.com/gocrud/inject/configure/cron"
	"github.com/gocrud/inject/core"
)

// Builder Cron 配置构建器
type Builder = confcron.Builder

// Service Cron 定时任务托管服务
type Service = confcron.Service

// BuilderOption 用于配置 Cron Builder
type BuilderOption func(*Builder)

// WithSeconds 启用秒级精度
func WithSeconds() BuilderOption {
	return func(b *Builder) {
		b.WithSeconds()
	}
}

// WithLocation 设置时区
func WithLocation(location string) BuilderOption {
	return func(b *Builder) {
		b.WithLocation(location)
	}
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() BuilderOption {
	return func(b *Builder) {
		b.EnableCronLogger()
	}
}

// AddJob 添加定时任务
// handler 可以是 func()，也可以是参数由注入器解析的任意函数
func AddJob(spec, name string, handler any) BuilderOption {
	return func(b *Builder) {
		if fn, ok := handler.(func()); ok {
			b.AddJob(spec, name, fn)
			return
		}
		b.AddJobWithDI(spec, name, handler)
	}
}

// New 启用 Cron 定时任务能力
// 调度器作为托管服务随应用启停
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := confcron.NewBuilder()
		for _, opt := range opts {
			opt(builder)
		}

		svc, err := builder.Build(rt.Injector, rt.Logger())
		if err != nil {
			return fmt.Errorf("cron: %w", err)
		}

		return core.WithHostedService(func() *Service {
			return svc
		})(rt)
	}
}
