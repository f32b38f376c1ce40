package etcd

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	confetcd "github.com/gocrud/inject/configure/etcd"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
)

// Builder Etcd 客户端配置构建器
type Builder = confetcd.Builder

// Options etcd 客户端配置选项
type Options = confetcd.EtcdClientOptions

// Factory etcd 客户端工厂
type Factory = confetcd.EtcdClientFactory

// BuilderOption 用于配置 Etcd Builder
type BuilderOption func(*Builder)

// WithClient 添加一个 etcd 客户端配置
func WithClient(name string, opts ...func(*Options)) BuilderOption {
	return func(b *Builder) {
		b.AddClient(name, func(o *Options) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// New 启用 Etcd 能力
// 每个客户端按名称限定符注册到注入器，"default" 客户端同时以无限定符注册
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := confetcd.NewBuilder()
		for _, opt := range opts {
			opt(builder)
		}

		factory, err := builder.Build(rt.Logger())
		if err != nil {
			return fmt.Errorf("etcd: %w", err)
		}
		if factory == nil {
			return nil
		}

		if err := rt.Provide(factory); err != nil {
			return fmt.Errorf("etcd: failed to register factory: %w", err)
		}

		for _, name := range factory.Names() {
			client, err := factory.Get(name)
			if err != nil {
				return fmt.Errorf("etcd: %w", err)
			}
			if err := rt.Provide(client, di.KeyFor[*clientv3.Client](di.Named(name))); err != nil {
				return fmt.Errorf("etcd: failed to register client '%s': %w", name, err)
			}
			if name == "default" {
				if err := rt.Provide(client); err != nil {
					return fmt.Errorf("etcd: failed to register default client: %w", err)
				}
			}
		}

		rt.Features.Set(factory)
		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			return factory.Close()
		})
		return nil
	}
}
