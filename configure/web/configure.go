package web

import (
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/logging"
)

// Configure 返回 Web 配置器
// 使用示例: builder.Configure(web.Configure(func(b *web.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx.GetLogger())
		if options != nil {
			options(builder)
		}

		webHost := builder.Build(ctx.Injector())

		// 作为托管服务随应用启停
		ctx.AddHostedService(webHost)

		ctx.GetLogger().Info("Web host configured",
			logging.Field{Key: "port", Value: webHost.port})
	}
}
