package core

import (
	"sync"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/hosting"
	"github.com/gocrud/inject/logging"
)

// Configurator 配置器函数类型
// 配置器用于扩展应用程序，可以注册绑定、添加托管服务等
type Configurator func(*BuildContext)

// BuildContext 构建上下文
// 提供给配置器的上下文环境，包含注入器、配置、日志等核心组件
type BuildContext struct {
	injector      *di.Injector
	configuration config.Configuration
	logger        logging.Logger
	environment   Environment

	// hostedServices 托管服务列表
	hostedServices []hosting.HostedService

	// cleanups 清理函数列表
	cleanups map[string]func()

	mu sync.RWMutex
}

// AddHostedService 添加托管服务
func (c *BuildContext) AddHostedService(service hosting.HostedService) {
	c.hostedServices = append(c.hostedServices, service)
}

// SetCleanup 设置资源清理函数
func (c *BuildContext) SetCleanup(key string, cleanup func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups[key] = cleanup
}

// Injector 返回底层注入器
// 配置器可以直接用 di.RegisterInstance / di.RegisterConstructor 注册绑定
func (c *BuildContext) Injector() *di.Injector {
	return c.injector
}

// ResolveService 从注入器解析服务
// 注意：仅在必要时使用此方法，优先通过注册绑定让依赖自动注入
func (c *BuildContext) ResolveService(key di.Key) (any, error) {
	return c.injector.Instance(key)
}

// GetLogger 获取日志记录器
func (c *BuildContext) GetLogger() logging.Logger {
	return c.logger
}

// GetConfiguration 获取配置对象
func (c *BuildContext) GetConfiguration() config.Configuration {
	return c.configuration
}

// GetEnvironment 获取环境信息
func (c *BuildContext) GetEnvironment() Environment {
	return c.environment
}

// ConfigureOptions 配置选项模式（支持静态、快照和监听三种模式）
// T: 配置类型
// section: 配置节名称（例如 "app", "database"）
// 使用示例: core.ConfigureOptions[AppSetting](ctx, "app")
func ConfigureOptions[T any](ctx *BuildContext, section string) {
	cache := config.NewOptionsCache[T](ctx.configuration, section)

	// Option[T]：应用生命周期内不变
	di.RegisterInstance[config.Option[T]](ctx.injector, config.NewOption(cache.Get()))

	// OptionMonitor[T]：实时更新，缓存层自动跟随配置重载
	di.RegisterInstance[config.OptionMonitor[T]](ctx.injector, config.NewOptionMonitor(cache))

	// OptionSnapshot[T]：每次解析取当下快照，同一轮解析内由上下文去重
	if err := di.RegisterConstructor[config.OptionSnapshot[T]](ctx.injector, func() config.OptionSnapshot[T] {
		return config.NewOptionSnapshot(cache.Snapshot())
	}); err != nil {
		ctx.logger.Error("Failed to register option snapshot",
			logging.Field{Key: "section", Value: section},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}

	ctx.logger.Info("Configured options",
		logging.Field{Key: "type", Value: di.TypeOf[T]().String()},
		logging.Field{Key: "section", Value: section})
}
