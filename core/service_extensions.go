package core

import (
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// AddSingleton 将 T 绑定到 impl，并注册为单例
// impl 可以是实例，也可以是构造函数
//
// 示例:
//
//	core.AddSingleton[IService](services, NewServiceImpl)
func AddSingleton[T any](s *ServiceCollection, impl any, quals ...di.Qualifier) {
	binding, err := di.Bind(impl, di.KeyFor[T](quals...))
	if err != nil {
		s.reportBindError("AddSingleton", err)
		return
	}
	s.injector.MustInstall(binding.InSingleton())
}

// AddTransient 将 T 绑定到 impl，每次解析独立构造
//
// 示例:
//
//	core.AddTransient[IWorker](services, NewWorker)
func AddTransient[T any](s *ServiceCollection, impl any, quals ...di.Qualifier) {
	binding, err := di.Bind(impl, di.KeyFor[T](quals...))
	if err != nil {
		s.reportBindError("AddTransient", err)
		return
	}
	s.injector.MustInstall(binding)
}

// AddScoped 将 T 绑定到 impl，注册为作用域服务
// 作用域服务在 Application.CreateScope 创建的子注入器内至多构造一次
//
// 示例:
//
//	core.AddScoped[IRequestScope](services, NewRequestScope)
func AddScoped[T any](s *ServiceCollection, impl any, quals ...di.Qualifier) {
	binding, err := di.Bind(impl, di.KeyFor[T](quals...))
	if err != nil {
		s.reportBindError("AddScoped", err)
		return
	}
	// 根注入器上按瞬态语义可用；每个作用域安装自己的单例副本
	s.injector.MustInstall(binding)
	s.scopedBindings = append(s.scopedBindings, binding)
}

func (s *ServiceCollection) reportBindError(op string, err error) {
	s.logger.Error("Failed to register service",
		logging.Field{Key: "operation", Value: op},
		logging.Field{Key: "error", Value: err.Error()})
}
