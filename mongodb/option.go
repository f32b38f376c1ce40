package mongodb

import (
	"context"
	"fmt"

	"github.com/gocrud/mgo"

	confmongo "github.com/gocrud/inject/configure/mongodb"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
)

// Builder MongoDB 配置构建器
type Builder = confmongo.Builder

// Options MongoDB 客户端配置选项
type Options = confmongo.MongoOptions

// Factory MongoDB 客户端工厂
type Factory = confmongo.MongoFactory

// BuilderOption 用于配置 MongoDB Builder
type BuilderOption func(*Builder)

// WithClient 添加一个 MongoDB 客户端配置
func WithClient(name string, uri string, opts ...func(*Options)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, uri, func(o *Options) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// New 启用 MongoDB 能力
// 每个客户端按名称限定符注册到注入器，"default" 客户端同时以无限定符注册
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := confmongo.NewBuilder(nil)
		for _, opt := range opts {
			opt(builder)
		}

		factory, err := builder.Build(rt.Logger())
		if err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
		if factory == nil {
			return nil
		}

		if err := rt.Provide(factory); err != nil {
			return fmt.Errorf("mongodb: failed to register factory: %w", err)
		}

		var provideErr error
		factory.Each(func(name string, client *mgo.Client) {
			if provideErr != nil {
				return
			}
			if err := rt.Provide(client, di.KeyFor[*mgo.Client](di.Named(name))); err != nil {
				provideErr = fmt.Errorf("mongodb: failed to register client '%s': %w", name, err)
				return
			}
			if name == "default" {
				if err := rt.Provide(client); err != nil {
					provideErr = fmt.Errorf("mongodb: failed to register default client: %w", err)
				}
			}
		})
		if provideErr != nil {
			return provideErr
		}

		rt.Features.Set(factory)
		rt.Lifecycle.OnStop(func(ctx context.Context) error {
			return factory.Close()
		})
		return nil
	}
}
