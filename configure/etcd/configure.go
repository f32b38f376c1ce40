package etcd

import (
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Configure 返回 Etcd 配置器
// 使用示例: builder.Configure(etcd.Configure(func(b *etcd.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build etcd clients",
				logging.Field{Key: "error", Value: err.Error()})
		}
		if factory == nil {
			return
		}

		di.RegisterInstance(ctx.Injector(), factory)

		for _, name := range factory.Names() {
			client, err := factory.Get(name)
			if err != nil {
				continue
			}
			di.RegisterInstance(ctx.Injector(), client, di.Named(name))
			if name == "default" {
				di.RegisterInstance(ctx.Injector(), client)
				ctx.GetLogger().Info("Default etcd client registered")
			}
		}

		ctx.SetCleanup("etcd", func() {
			ctx.GetLogger().Info("Closing etcd clients")
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close etcd clients",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})
	}
}
