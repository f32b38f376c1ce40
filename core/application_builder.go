package core

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/hosting"
	"github.com/gocrud/inject/logging"
)

// ApplicationBuilder 聚合配置、日志与服务注册，最终产出 Application
type ApplicationBuilder struct {
	environment          string
	configBuilder        *config.ConfigurationBuilder
	loggingBuilder       *logging.LoggingBuilder
	serviceConfigurators []func(*ServiceCollection)
	configurators        []Configurator
	shutdownTimeout      time.Duration
	mu                   sync.RWMutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		environment:     "development",
		configBuilder:   config.NewConfigurationBuilder(),
		loggingBuilder:  logging.NewLoggingBuilder(),
		shutdownTimeout: 30 * time.Second,
	}
}

// UseEnvironment 设置环境名称（development/staging/production）
func (b *ApplicationBuilder) UseEnvironment(env string) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environment = env
	return b
}

// UseShutdownTimeout 设置优雅关闭的最长等待时间
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// ConfigureConfiguration 定制配置源
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 定制日志输出
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// ConfigureServices 注册服务绑定，构建时按添加顺序执行
func (b *ApplicationBuilder) ConfigureServices(configure func(*ServiceCollection)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.serviceConfigurators = append(b.serviceConfigurators, configure)
	}
	return b
}

// Configure 添加构建期配置器
// 既接受 Configurator，也接受裸的 func(*BuildContext)
func (b *ApplicationBuilder) Configure(configurators ...interface{}) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range configurators {
		switch fn := c.(type) {
		case func(*BuildContext):
			b.configurators = append(b.configurators, fn)
		case Configurator:
			b.configurators = append(b.configurators, fn)
		default:
			panic(fmt.Sprintf("configurator must be func(*BuildContext), got %T", c))
		}
	}
	return b
}

// AddExtension 接入扩展
// 扩展可以同时实现 ServiceConfigurator 和 AppConfigurator，两个挂载点各自生效
func (b *ApplicationBuilder) AddExtension(ext Extension) *ApplicationBuilder {
	validateExtension(ext)

	b.mu.Lock()
	defer b.mu.Unlock()

	if sc, ok := ext.(ServiceConfigurator); ok {
		b.serviceConfigurators = append(b.serviceConfigurators, sc.ConfigureServices)
	}
	if ac, ok := ext.(AppConfigurator); ok {
		b.configurators = append(b.configurators, ac.ConfigureBuilder)
	}
	return b
}

// AddOptions 把配置节绑定为强类型选项
// 用法: core.AddOptions[AppSetting](builder, "app")
func AddOptions[T any](b *ApplicationBuilder, section string) *ApplicationBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ConfigureOptions[T](ctx, section)
	})
}

// AddTask 把一个函数挂成后台任务，随应用启停
func (b *ApplicationBuilder) AddTask(task func(ctx context.Context) error) *ApplicationBuilder {
	b.Configure(func(ctx *BuildContext) {
		ctx.AddHostedService(&functionalService{task: task})
	})
	return b
}

// functionalService 把裸函数适配成托管服务
type functionalService struct {
	task func(ctx context.Context) error
}

func (f *functionalService) Start(ctx context.Context) error {
	return f.task(ctx)
}

func (f *functionalService) Stop(ctx context.Context) error {
	return nil
}

// ServiceCollection 服务注册入口，ConfigureServices 回调拿到的就是它
type ServiceCollection struct {
	injector               *di.Injector
	logger                 logging.Logger
	hostedServiceProviders []any // 构造函数或现成实例
	scopedBindings         []*di.UninstalledBinding
}

// Injector 返回底层注入器
func (s *ServiceCollection) Injector() *di.Injector {
	return s.injector
}

// AddHostedService 注册托管服务，接受实例或构造函数
// 注册项同时作为普通单例绑定安装，其他服务可以注入它
func (s *ServiceCollection) AddHostedService(value any) {
	binding, err := di.Bind(value)
	if err != nil {
		s.logger.Error("Failed to bind hosted service",
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	s.injector.MustInstall(binding.InSingleton())
	s.hostedServiceProviders = append(s.hostedServiceProviders, value)
}

// Build 组装应用：配置 → 日志 → 注入器 → 配置器 → 预热 → 托管服务收集
func (b *ApplicationBuilder) Build() Application {
	b.mu.Lock()
	defer b.mu.Unlock()

	reloadableConfig, err := b.configBuilder.BuildReloadable()
	if err != nil {
		panic(fmt.Sprintf("Failed to build configuration: %v", err))
	}

	loggerFactory := b.loggingBuilder.Build()
	logger := loggerFactory.CreateLogger("Application")
	logger.Info("Building application",
		logging.Field{Key: "environment", Value: b.environment})

	injector := di.New()
	registerFrameworkBindings(injector, reloadableConfig, loggerFactory, logger)

	services := &ServiceCollection{injector: injector, logger: logger}
	bctx := &BuildContext{
		injector:      injector,
		configuration: reloadableConfig,
		logger:        logger,
		environment:   NewEnvironment(b.environment),
		cleanups:      make(map[string]func()),
	}

	for _, configurator := range b.configurators {
		configurator(bctx)
	}
	for _, configurator := range b.serviceConfigurators {
		configurator(services)
	}

	// 急切构造全部单例，装配错误在启动前暴露
	if err := injector.WarmUp(); err != nil {
		logger.Fatal("Failed to warm up injector",
			logging.Field{Key: "error", Value: err.Error()})
	}
	logger.Info("Injector built successfully")

	return &application{
		injector:        injector,
		scopedBindings:  services.scopedBindings,
		configuration:   reloadableConfig,
		configBuilder:   b.configBuilder,
		logger:          logger,
		environment:     NewEnvironment(b.environment),
		hostedServices:  collectHostedServices(bctx, services, injector, logger),
		cleanups:        bctx.cleanups,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}
}

// registerFrameworkBindings 安装框架自身的核心绑定，用户服务可以直接注入这些类型
func registerFrameworkBindings(injector *di.Injector, cfg *config.ReloadableConfiguration, factory logging.LoggerFactory, logger logging.Logger) {
	di.RegisterInstance[config.Configuration](injector, cfg)
	di.RegisterInstance[*config.ReloadableConfiguration](injector, cfg)
	di.RegisterInstance[logging.LoggerFactory](injector, factory)
	di.RegisterInstance[logging.Logger](injector, logger)
	di.RegisterInstance[*di.Injector](injector, injector)
}

// collectHostedServices 汇总两类托管服务：
// BuildContext 里已是现成实例；ServiceCollection 里是绑定，需要从注入器解析出来
func collectHostedServices(bctx *BuildContext, services *ServiceCollection, injector *di.Injector, logger logging.Logger) []hosting.HostedService {
	hosted := append([]hosting.HostedService(nil), bctx.hostedServices...)

	for _, provider := range services.hostedServiceProviders {
		serviceType, ok := hostedServiceType(provider)
		if !ok {
			logger.Warn("Constructor function has no return value, skipping hosted service")
			continue
		}

		instance, err := injector.Instance(di.KeyOf(serviceType))
		if err != nil {
			logger.Fatal("Failed to retrieve hosted service from injector",
				logging.Field{Key: "error", Value: err.Error()},
				logging.Field{Key: "type", Value: serviceType.String()})
		}

		hs, ok := instance.(hosting.HostedService)
		if !ok {
			logger.Fatal("Service does not implement HostedService interface",
				logging.Field{Key: "type", Value: serviceType.String()})
		}
		hosted = append(hosted, hs)
	}
	return hosted
}

// hostedServiceType 确定托管服务注册项对应的解析类型：
// 构造函数取第一个返回值类型，实例取自身类型。
func hostedServiceType(provider any) (reflect.Type, bool) {
	v := reflect.ValueOf(provider)
	if v.Kind() == reflect.Func {
		t := v.Type()
		if t.NumOut() == 0 {
			return nil, false
		}
		return t.Out(0), true
	}
	return reflect.TypeOf(provider), true
}

// Environment 运行环境
type Environment interface {
	Name() string
	IsDevelopment() bool
	IsProduction() bool
	IsStaging() bool
}

type environment string

// NewEnvironment 按名称创建环境
func NewEnvironment(name string) Environment {
	return environment(name)
}

func (e environment) Name() string        { return string(e) }
func (e environment) IsDevelopment() bool { return e == "development" }
func (e environment) IsProduction() bool  { return e == "production" }
func (e environment) IsStaging() bool     { return e == "staging" }
