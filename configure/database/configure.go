package database

import (
	"gorm.io/gorm"

	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Configure 返回数据库配置器
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build databases",
				logging.Field{Key: "error", Value: err.Error()})
		}
		if factory == nil {
			return
		}

		di.RegisterInstance(ctx.Injector(), factory)

		factory.Each(func(name string, db *gorm.DB) {
			di.RegisterInstance(ctx.Injector(), db, di.Named(name))
			ctx.GetLogger().Info("Database registered", logging.Field{Key: "name", Value: name})

			// 默认实例兼容性
			if name == "default" {
				di.RegisterInstance(ctx.Injector(), db)
			}
		})

		ctx.SetCleanup("database", func() {
			ctx.GetLogger().Info("Closing database connections")
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close databases",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})
	}
}
