package config

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Option 静态配置选项
// 应用启动时取值一次，生命周期内不变
type Option[T any] interface {
	Value() T
}

// OptionSnapshot 快照配置选项
// 每次解析取当下的配置快照，同一轮解析内保持不变
type OptionSnapshot[T any] interface {
	Value() T
}

// OptionMonitor 监听配置选项
// 总是返回最新值，配置重载后自动跟随
type OptionMonitor[T any] interface {
	Value() T
}

// reloadNotifier 由支持热重载的 Configuration 实现
type reloadNotifier interface {
	OnReload(func())
}

// OptionsCache 缓存某个配置节的解码结果
// 配置支持重载时注册回调自动刷新
type OptionsCache[T any] struct {
	config  Configuration
	section string
	current atomic.Pointer[T]
}

// NewOptionsCache 创建配置缓存并完成首次加载
// 配置节不存在时落到 T 的零值
func NewOptionsCache[T any](config Configuration, section string) *OptionsCache[T] {
	cache := &OptionsCache[T]{
		config:  config,
		section: section,
	}

	if err := cache.reload(); err != nil {
		var zero T
		cache.current.Store(&zero)
	}

	if notifier, ok := config.(reloadNotifier); ok {
		notifier.OnReload(func() {
			cache.reload()
		})
	}

	return cache
}

// reload 重新解码配置节并整体替换缓存值
func (c *OptionsCache[T]) reload() error {
	value := new(T)
	if err := c.config.Bind(c.section, value); err != nil {
		return fmt.Errorf("config: failed to bind section '%s': %w", c.section, err)
	}
	c.current.Store(value)
	return nil
}

// Get 返回当前缓存值
func (c *OptionsCache[T]) Get() T {
	return *c.current.Load()
}

// Snapshot 返回当前值的深拷贝
// 调用方持有的副本不会随后续重载变化
func (c *OptionsCache[T]) Snapshot() T {
	current := c.Get()

	data, err := json.Marshal(current)
	if err != nil {
		// 无法序列化的类型直接按值返回
		return current
	}
	var snapshot T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return current
	}
	return snapshot
}

type staticOption[T any] struct {
	value T
}

func (o staticOption[T]) Value() T { return o.value }

// NewOption 创建静态配置选项
func NewOption[T any](value T) Option[T] {
	return staticOption[T]{value: value}
}

type snapshotOption[T any] struct {
	value T
}

func (o snapshotOption[T]) Value() T { return o.value }

// NewOptionSnapshot 创建快照配置选项
func NewOptionSnapshot[T any](value T) OptionSnapshot[T] {
	return snapshotOption[T]{value: value}
}

type monitorOption[T any] struct {
	cache *OptionsCache[T]
}

func (o monitorOption[T]) Value() T { return o.cache.Get() }

// NewOptionMonitor 创建监听配置选项
func NewOptionMonitor[T any](cache *OptionsCache[T]) OptionMonitor[T] {
	return monitorOption[T]{cache: cache}
}
