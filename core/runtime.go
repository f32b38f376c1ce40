package core

import (
	"fmt"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Runtime 是微内核模式的状态容器
type Runtime struct {
	// Features 存放构建时特性 (WebBuilder, DbBuilder 等)
	Features FeatureCollection

	// Injector 核心注入器
	Injector *di.Injector

	// Lifecycle 生命周期管理
	Lifecycle *LifecycleEvents

	// shutdownCh 用于通知应用退出
	shutdownCh chan struct{}

	// ErrorHandler 用于记录运行时产生的严重错误
	// 外部可以通过设置此字段来接管错误日志
	ErrorHandler func(err error)
}

// NewRuntime 创建一个新的运行时实例
func NewRuntime() *Runtime {
	return &Runtime{
		Injector:   di.New(),
		Lifecycle:  NewLifecycle(),
		shutdownCh: make(chan struct{}),
		ErrorHandler: func(err error) {
			// 默认输出到标准输出
			fmt.Printf("[Runtime Error] %v\n", err)
		},
	}
}

// Shutdown 请求应用退出
// 调用此方法会触发应用关闭流程
func (rt *Runtime) Shutdown() {
	select {
	case <-rt.shutdownCh:
		// 已经关闭，无需操作
	default:
		close(rt.shutdownCh)
	}
}

// Done 返回一个通道，当应用需要退出时该通道会关闭
func (rt *Runtime) Done() <-chan struct{} {
	return rt.shutdownCh
}

// Provide 注册服务绑定 (语法糖)
// target 可以是构造函数或现成实例；keys 缺省时按类型推断
func (rt *Runtime) Provide(target any, keys ...di.Key) error {
	binding, err := di.Bind(target, keys...)
	if err != nil {
		return err
	}
	return rt.Injector.Install(binding.InSingleton())
}

// Logger 返回注入器中注册的日志记录器
// 未注册时返回默认的控制台日志记录器
func (rt *Runtime) Logger() logging.Logger {
	if logger, err := di.Resolve[logging.Logger](rt.Injector); err == nil {
		return logger
	}
	return logging.NewLogger()
}

// Invoke 调用函数并注入依赖 (语法糖)
func (rt *Runtime) Invoke(function any) error {
	return di.Invoke(rt.Injector, function)
}

// Apply 应用多个 Option
func (rt *Runtime) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return err
		}
	}
	return nil
}
