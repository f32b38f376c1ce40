package mongodb

import (
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
	"github.com/gocrud/mgo"
)

// Configure 返回 MongoDB 配置器
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build mongodb clients",
				logging.Field{Key: "error", Value: err.Error()})
		}
		if factory == nil {
			return
		}

		di.RegisterInstance(ctx.Injector(), factory)

		factory.Each(func(name string, client *mgo.Client) {
			di.RegisterInstance(ctx.Injector(), client, di.Named(name))
			ctx.GetLogger().Info("Mongo client registered", logging.Field{Key: "name", Value: name})

			// 默认实例兼容性
			if name == "default" {
				di.RegisterInstance(ctx.Injector(), client)
			}
		})

		ctx.SetCleanup("mongodb", func() {
			ctx.GetLogger().Info("Closing mongo clients")
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close mongo clients",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})
	}
}
