package redis

import (
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Configure 返回 Redis 配置器
// 使用示例: builder.Configure(redis.Configure(func(b *redis.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build redis clients",
				logging.Field{Key: "error", Value: err.Error()})
		}
		if factory == nil {
			return
		}

		di.RegisterInstance(ctx.Injector(), factory)

		// 每个客户端按名称限定注册，default 客户端同时作为无限定绑定
		for _, name := range factory.Names() {
			client, err := factory.Get(name)
			if err != nil {
				continue
			}
			di.RegisterInstance(ctx.Injector(), client, di.Named(name))
			if name == "default" {
				di.RegisterInstance(ctx.Injector(), client)
				ctx.GetLogger().Info("Default redis client registered")
			}
		}

		ctx.SetCleanup("redis", func() {
			ctx.GetLogger().Info("Closing redis clients")
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close redis clients",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})
	}
}
