package cron

import (
	"fmt"
	"reflect"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Builder Cron 配置构建器
type Builder struct {
	enableSeconds    bool
	enableCronLogger bool
	location         string
	jobs             []jobDefinition
}

// jobDefinition 任务定义
type jobDefinition struct {
	spec    string
	name    string
	handler any // 可以是 func() 或依赖注入的函数
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{
		location: "UTC",
	}
}

// WithSeconds 启用秒级精度
func (b *Builder) WithSeconds() *Builder {
	b.enableSeconds = true
	return b
}

// WithLocation 设置时区
func (b *Builder) WithLocation(location string) *Builder {
	b.location = location
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.enableCronLogger = true
	return b
}

// AddJob 添加简单任务（无依赖注入）
func (b *Builder) AddJob(spec, name string, handler func()) *Builder {
	b.jobs = append(b.jobs, jobDefinition{
		spec:    spec,
		name:    name,
		handler: handler,
	})
	return b
}

// AddJobWithDI 添加带依赖注入的任务
// handler 可以是任何函数，参数会自动从注入器解析
//
// 示例：
//
//	builder.AddJobWithDI("0 */5 * * * *", "sync-data", func(svc *DataService, logger logging.Logger) {
//	    svc.Sync()
//	})
func (b *Builder) AddJobWithDI(spec, name string, handler any) *Builder {
	b.jobs = append(b.jobs, jobDefinition{
		spec:    spec,
		name:    name,
		handler: handler,
	})
	return b
}

// Build 构建 CronService
// 带依赖注入的任务在触发时从 injector 解析参数
func (b *Builder) Build(injector *di.Injector, logger logging.Logger) (*Service, error) {
	cronSvc := newService(logger, func(opts *options) {
		opts.EnableSeconds = b.enableSeconds
		opts.EnableCronLogger = b.enableCronLogger
		opts.Location = b.location
		opts.Logger = logger
	})

	for _, job := range b.jobs {
		switch handler := job.handler.(type) {
		case func():
			// 简单函数，直接注册
			if err := cronSvc.addJob(job.spec, job.name, handler); err != nil {
				return nil, fmt.Errorf("failed to add job '%s': %w", job.name, err)
			}

		default:
			// 带依赖注入的函数，每次触发时从注入器解析参数
			wrappedHandler, err := b.wrapHandlerWithDI(injector, job.name, logger, handler)
			if err != nil {
				return nil, fmt.Errorf("failed to wrap job '%s' with DI: %w", job.name, err)
			}
			if err := cronSvc.addJob(job.spec, job.name, wrappedHandler); err != nil {
				return nil, fmt.Errorf("failed to add job '%s': %w", job.name, err)
			}
		}
	}

	return cronSvc, nil
}

// wrapHandlerWithDI 包装处理器，触发时注入依赖
func (b *Builder) wrapHandlerWithDI(injector *di.Injector, name string, logger logging.Logger, handler any) (func(), error) {
	handlerType := reflect.TypeOf(handler)
	if handlerType == nil || handlerType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %T", handler)
	}

	wrappedFunc := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Cron job panicked",
					logging.Field{Key: "job", Value: name},
					logging.Field{Key: "panic", Value: r})
			}
		}()

		if err := di.Invoke(injector, handler); err != nil {
			logger.Error("Cron job invocation failed",
				logging.Field{Key: "job", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	return wrappedFunc, nil
}
