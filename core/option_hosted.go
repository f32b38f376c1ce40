package core

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gocrud/inject/di"
)

// spawn 在后台 Goroutine 里运行 run，返回取消函数
// run 以非 nil 错误退出时走 fail-fast：上报 ErrorHandler 并触发整个应用关闭
func spawn(rt *Runtime, label string, run func(ctx context.Context) error) context.CancelFunc {
	// 挂在 Background 上，任务存活期与应用一致，不随启动流程的 ctx 结束
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		err := run(ctx)
		if err == nil {
			return
		}
		if rt.ErrorHandler != nil {
			rt.ErrorHandler(fmt.Errorf("%s exited with error: %w", label, err))
		}
		rt.Shutdown()
	}()

	return cancel
}

// WithHostedService 把一个托管服务挂到运行时生命周期上
// constructor 可以是构造函数或现成实例，其解析类型必须实现 HostedService。
// OnStart 时在独立 Goroutine 调用 Start（允许阻塞），OnStop 时先取消再调用 Stop。
func WithHostedService(constructor any) Option {
	return func(rt *Runtime) error {
		binding, err := di.Bind(constructor)
		if err != nil {
			return fmt.Errorf("WithHostedService: failed to bind service: %w", err)
		}
		serviceKey := binding.Keys()[0]

		iface := reflect.TypeOf((*HostedService)(nil)).Elem()
		if !serviceKey.Type().Implements(iface) {
			return fmt.Errorf("WithHostedService: service %v does not implement core.HostedService", serviceKey.Type())
		}

		if err := rt.Injector.Install(binding.InSingleton()); err != nil {
			return fmt.Errorf("WithHostedService: failed to install service: %w", err)
		}

		resolve := func() (HostedService, error) {
			val, err := rt.Injector.Instance(serviceKey)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve hosted service %v: %w", serviceKey, err)
			}
			return val.(HostedService), nil
		}

		var cancel context.CancelFunc

		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			svc, err := resolve()
			if err != nil {
				return err
			}
			cancel = spawn(rt, fmt.Sprintf("HostedService %v", serviceKey), svc.Start)
			return nil
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			svc, err := resolve()
			if err != nil {
				return nil
			}
			return svc.Stop(ctx)
		})

		return nil
	}
}

// WorkerFunc 阻塞式后台任务，通过 ctx.Done() 感知退出
type WorkerFunc func(ctx context.Context) error

// WithWorker 把一个阻塞函数注册为后台任务，启动即跑，停止时取消其 ctx
func WithWorker(fn WorkerFunc) Option {
	return func(rt *Runtime) error {
		var cancel context.CancelFunc

		rt.Lifecycle.OnStart(func(ctx context.Context) error {
			cancel = spawn(rt, "Worker", fn)
			return nil
		})

		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		})

		return nil
	}
}
