package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	confdb "github.com/gocrud/inject/configure/database"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
)

// Builder 数据库配置构建器
type Builder = confdb.Builder

// Options 数据库配置选项
type Options = confdb.DatabaseOptions

// Factory 数据库工厂
type Factory = confdb.DatabaseFactory

// BuilderOption 用于配置 Database Builder
type BuilderOption func(*Builder)

// WithDatabase 添加一个数据库实例配置
func WithDatabase(name string, dialector gorm.Dialector, opts ...func(*Options)) BuilderOption {
	return func(b *Builder) {
		b.Add(name, dialector, func(o *Options) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// New 启用数据库能力（基于 GORM）
// 每个实例按名称限定符注册到注入器，"default" 实例同时以无限定符注册
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		builder := confdb.NewBuilder(nil)
		for _, opt := range opts {
			opt(builder)
		}

		factory, err := builder.Build(rt.Logger())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if factory == nil {
			return nil
		}

		if err := rt.Provide(factory); err != nil {
			return fmt.Errorf("database: failed to register factory: %w", err)
		}

		var provideErr error
		factory.Each(func(name string, db *gorm.DB) {
			if provideErr != nil {
				return
			}
			if err := rt.Provide(db, di.KeyFor[*gorm.DB](di.Named(name))); err != nil {
				provideErr = fmt.Errorf("database: failed to register database '%s': %w", name, err)
				return
			}
			if name == "default" {
				if err := rt.Provide(db); err != nil {
					provideErr = fmt.Errorf("database: failed to register default database: %w", err)
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
