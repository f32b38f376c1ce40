package di

import (
	"reflect"
	"sync"
)

// SingletonTag 是内置单例作用域的标记类型。
// 绑定声明 InSingleton() 等价于 InScope(di.TypeOf[di.SingletonTag]())。
type SingletonTag struct{}

var singletonTagType = reflect.TypeOf(SingletonTag{})

// ScopeApplier 用缓存策略包装绑定的构造入口。
// Apply 在绑定安装时调用一次，返回的 provider 在每次解析时调用。
type ScopeApplier interface {
	Apply(injector *Injector, key Key, base scopedProvider) scopedProvider
}

// scopeEntry 是单例缓存的条目，mu 串行化该条目的首次创建。
// 用互斥锁加完成标志而不是 atomic.Value，因为合法实例可以为 nil。
// 条目只缓存成功结果：构造失败不固化，后续请求重试。
type scopeEntry struct {
	mu   sync.Mutex
	done bool
	inst any
}

// singletonScope 是内置单例作用域：
// 按（注入器标识, Key）缓存，整个注入器生命周期内每个 Key 至多构造一次。
// 未覆盖绑定的子注入器共享父注入器的实例；重新绑定的子注入器各自独立。
type singletonScope struct {
	mu      sync.Mutex
	entries map[Key]*scopeEntry
}

func newSingletonScope() *singletonScope {
	return &singletonScope{entries: make(map[Key]*scopeEntry)}
}

// NewSingletonScope 返回一个独立的单例缓存策略实例。
// 供自定义作用域标记复用内置的至多一次缓存语义，
// 例如按请求作用域在每个请求开始时创建一个新实例。
func NewSingletonScope() ScopeApplier {
	return newSingletonScope()
}

func (s *singletonScope) Apply(injector *Injector, key Key, base scopedProvider) scopedProvider {
	entry := s.entry(key)

	return func(ctx *InjectionContext) (any, bool, error) {
		// 快速路径：已创建
		entry.mu.Lock()
		if entry.done {
			inst := entry.inst
			entry.mu.Unlock()
			return inst, false, nil
		}
		// 持锁构造：两个并发请求同一单例时，后到者阻塞等待而不是重复构造。
		// 同一调用链内的循环回边在上下文层（in-flight 检查）提前短路，
		// 不会重入此锁。
		inst, fresh, err := base(ctx)
		if err != nil {
			// 代理替换信号不是构造结果；真实错误也不固化，留待重试
			entry.mu.Unlock()
			return nil, false, err
		}
		if fresh {
			// 成员注入与代理收尾同样在临界区内完成：条目只在实例
			// 完整初始化后才可见，缓存命中绝不交出注入中途的对象
			inst, err = ctx.finalizeScoped(inst)
			if err != nil {
				entry.mu.Unlock()
				return nil, false, err
			}
		}
		entry.inst, entry.done = inst, true
		entry.mu.Unlock()
		return inst, false, nil
	}
}

func (s *singletonScope) entry(key Key) *scopeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &scopeEntry{}
		s.entries[key] = e
	}
	return e
}
