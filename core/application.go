package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/hosting"
	"github.com/gocrud/inject/logging"
)

// Application 构建完成的应用
type Application interface {
	Run() error
	RunAsync(ctx context.Context) error
	Stop(ctx context.Context) error
	Services() *di.Injector
	CreateScope() *di.Injector
	Configuration() config.Configuration
	Logger() logging.Logger
	Environment() Environment
	GetService(ptr any)
}

type application struct {
	injector        *di.Injector
	scopedBindings  []*di.UninstalledBinding
	configuration   *config.ReloadableConfiguration
	configBuilder   *config.ConfigurationBuilder
	logger          logging.Logger
	environment     Environment
	hostedServices  []hosting.HostedService
	serviceManager  *hosting.HostedServiceManager
	cleanups        map[string]func()
	shutdownTimeout time.Duration
	stopCh          chan struct{}
	running         bool
	runCtx          context.Context
	runCancel       context.CancelFunc
	mu              sync.RWMutex
}

// Run 运行应用并阻塞到退出
func (a *application) Run() error {
	return a.RunAsync(context.Background())
}

// RunAsync 在给定 context 下运行应用
// 返回时机：收到退出信号、Stop 被调用、ctx 取消、或某个托管服务启动失败
func (a *application) RunAsync(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("application is already running")
	}
	a.running = true
	a.runCtx, a.runCancel = context.WithCancel(ctx)
	a.mu.Unlock()

	a.logger.Info("Starting application",
		logging.Field{Key: "environment", Value: a.environment.Name()})

	a.watchConfigSources()

	a.serviceManager = hosting.NewHostedServiceManager(a.logger)
	for _, service := range a.hostedServices {
		a.serviceManager.Add(service)
	}
	errCh := a.serviceManager.StartAll(a.runCtx)

	a.logger.Info("Application started successfully")

	runErr := a.waitForExit(ctx, errCh)
	a.shutdown()

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	return runErr
}

// waitForExit 阻塞等待任意一个退出条件
func (a *application) waitForExit(ctx context.Context, errCh <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.Info("Received shutdown signal",
			logging.Field{Key: "signal", Value: sig.String()})
	case <-a.stopCh:
		a.logger.Info("Application stop requested")
	case <-ctx.Done():
		a.logger.Info("Context cancelled")
	case err := <-errCh:
		a.logger.Error("Hosted service failed, stopping application",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	return nil
}

// shutdown 优雅关闭：停托管服务、停配置监听、跑清理函数
// 整体受 shutdownTimeout 约束
func (a *application) shutdown() {
	a.logger.Info("Shutting down application",
		logging.Field{Key: "timeout", Value: a.shutdownTimeout.String()})

	a.runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.serviceManager.StopAll(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop hosted services",
			logging.Field{Key: "error", Value: err.Error()})
	}
	a.serviceManager.Wait()

	a.logger.Info("Stopping configuration watches")
	for _, source := range a.configBuilder.GetSources() {
		if watchable, ok := source.(config.WatchableSource); ok {
			watchable.StopWatch()
		}
	}

	if len(a.cleanups) > 0 {
		a.logger.Info("Running cleanup functions",
			logging.Field{Key: "count", Value: len(a.cleanups)})
		for key, cleanup := range a.cleanups {
			a.logger.Debug("Running cleanup",
				logging.Field{Key: "key", Value: key})
			cleanup()
		}
	}

	a.logger.Info("Application stopped")
}

// watchConfigSources 对可监听的配置源开启变更监听
// 任一源变更就整体重载 Configuration
func (a *application) watchConfigSources() {
	reload := func() {
		if err := a.configuration.Reload(); err != nil {
			a.logger.Error("Failed to reload configuration",
				logging.Field{Key: "error", Value: err.Error()})
			return
		}
		a.logger.Info("Configuration reloaded successfully")
	}

	for _, source := range a.configBuilder.GetSources() {
		watchable, ok := source.(config.WatchableSource)
		if !ok {
			continue
		}
		if err := watchable.StartWatch(a.runCtx, reload); err != nil {
			a.logger.Warn("Failed to start config watch",
				logging.Field{Key: "source", Value: source.Name()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

// Stop 请求停止应用，Run/RunAsync 随后返回
func (a *application) Stop(ctx context.Context) error {
	close(a.stopCh)
	return nil
}

// Services 获取注入器
func (a *application) Services() *di.Injector {
	return a.injector
}

// CreateScope 创建请求作用域：子注入器 + 作用域内单例的绑定
// AddScoped 注册的服务在每个作用域内至多构造一次，作用域之间互相独立
func (a *application) CreateScope() *di.Injector {
	scope := a.injector.Child()
	for _, binding := range a.scopedBindings {
		if err := scope.Install(binding.InSingleton()); err != nil {
			a.logger.Error("Failed to install scoped binding",
				logging.Field{Key: "binding", Value: binding.String()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return scope
}

// Configuration 获取配置
func (a *application) Configuration() config.Configuration {
	return a.configuration
}

// Logger 获取日志记录器
func (a *application) Logger() logging.Logger {
	return a.logger
}

// Environment 获取环境
func (a *application) Environment() Environment {
	return a.environment
}

// GetService 通过出参指针取服务实例，解析失败直接 panic
//
//	var svc *MyService
//	app.GetService(&svc)
func (a *application) GetService(ptr any) {
	ptrValue := reflect.ValueOf(ptr)
	if ptrValue.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("app: GetService argument must be a pointer, got %T", ptr))
	}

	target := ptrValue.Elem()
	if !target.CanSet() {
		panic("app: GetService argument must be settable")
	}

	instance, err := a.injector.Instance(di.KeyOf(target.Type()))
	if err != nil {
		panic(fmt.Sprintf("app: failed to get service %s: %v", target.Type(), err))
	}

	if instance == nil {
		target.Set(reflect.Zero(target.Type()))
		return
	}
	target.Set(reflect.ValueOf(instance))
}
