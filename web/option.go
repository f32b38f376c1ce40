package web

import (
	confweb "github.com/gocrud/inject/configure/web"
	"github.com/gocrud/inject/core"
)

// Builder Web 主机构建器（基于 Gin）
type Builder = confweb.Builder

// Host Web 主机
type Host = confweb.Host

// Controller 路由控制器
type Controller = confweb.Controller

// BuilderOption 用于配置 Web Builder
type BuilderOption func(*Builder)

// WithPort 设置端口
func WithPort(port int) BuilderOption {
	return func(b *Builder) {
		b.UsePort(port)
	}
}

// WithControllers 添加控制器（支持实例或构造函数）
func WithControllers(controllers ...any) BuilderOption {
	return func(b *Builder) {
		b.AddControllers(controllers...)
	}
}

// New 启用 Web 能力
// 控制器绑定安装到注入器，主机作为托管服务随应用启停
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := confweb.NewBuilder(rt.Logger())
		for _, opt := range opts {
			opt(builder)
		}

		// 注册为 Feature，便于测试或其他组件定制路由
		rt.Features.Set(builder)

		host := builder.Build(rt.Injector)
		rt.Features.Set(host)

		return core.WithHostedService(func() *Host {
			return host
		})(rt)
	}
}
