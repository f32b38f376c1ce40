package inject

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
)

// LoadOptions 配置加载选项
type LoadOptions struct {
	Paths     []string
	EnvPrefix string
	HotReload bool
}

// LoadOption 配置加载选项函数
type LoadOption func(*LoadOptions)

// WithHotReload 启用热重载
// 支持变更监听的配置源（例如 etcd）变更时会自动触发重载
func WithHotReload() LoadOption {
	return func(o *LoadOptions) {
		o.HotReload = true
	}
}

// WithEnvPrefix 指定环境变量前缀
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *LoadOptions) {
		o.EnvPrefix = prefix
	}
}

// WithExtraPath 追加额外的配置文件
func WithExtraPath(path string) LoadOption {
	return func(o *LoadOptions) {
		o.Paths = append(o.Paths, path)
	}
}

// Load 加载配置文件并注册 Configuration 到运行时
// 按扩展名选择解析器（.json 走 JSON，其余按 YAML 处理），并叠加环境变量
func Load(path string, opts ...LoadOption) core.Option {
	return func(rt *core.Runtime) error {
		options := &LoadOptions{
			Paths:     []string{path},
			EnvPrefix: "APP_",
		}
		for _, opt := range opts {
			opt(options)
		}

		builder := config.NewConfigurationBuilder()
		for _, p := range options.Paths {
			if strings.HasSuffix(p, ".json") {
				builder.AddJsonFile(p, true)
			} else {
				builder.AddYamlFile(p, true)
			}
		}
		builder.AddEnvironmentVariables(options.EnvPrefix)

		cfg, err := builder.BuildReloadable()
		if err != nil {
			return fmt.Errorf("config: failed to build configuration: %w", err)
		}

		if err := rt.Provide(cfg, di.KeyFor[config.Configuration]()); err != nil {
			return err
		}
		if err := rt.Provide(cfg); err != nil {
			return err
		}
		rt.Features.Set(cfg)

		if options.HotReload {
			rt.Lifecycle.OnStart(func(ctx context.Context) error {
				for _, source := range builder.GetSources() {
					watchable, ok := source.(config.WatchableSource)
					if !ok {
						continue
					}
					err := watchable.StartWatch(ctx, func() {
						if err := cfg.Reload(); err != nil && rt.ErrorHandler != nil {
							rt.ErrorHandler(fmt.Errorf("config: reload failed: %w", err))
						}
					})
					if err != nil {
						return fmt.Errorf("config: failed to watch %s: %w", source.Name(), err)
					}
				}
				return nil
			})
			rt.Lifecycle.OnStop(func(ctx context.Context) error {
				for _, source := range builder.GetSources() {
					if watchable, ok := source.(config.WatchableSource); ok {
						watchable.StopWatch()
					}
				}
				return nil
			})
		}

		return nil
	}
}

// Bind 将配置节绑定到结构体并注册为单例
func Bind[T any](rt *core.Runtime, section string) error {
	return rt.Invoke(func(cfg config.Configuration) error {
		var settings T
		if err := cfg.Bind(section, &settings); err != nil {
			return fmt.Errorf("config: failed to bind section '%s': %w", section, err)
		}
		return rt.Provide(&settings)
	})
}
