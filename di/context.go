package di

import (
	"fmt"
	"reflect"
)

// nilValue 是覆盖条目的 NIL 哨兵类型。
type nilValue struct{}

// Nil 作为覆盖值时表示"显式注入 nil"，与"没有覆盖"区分开。
var Nil any = nilValue{}

// pendingProxy 记录一个已代理但尚未附加委托目标的条目。
// loopKey 是触发代理替换的回边请求：它构造完成后环即被打破，
// 此时重新构造 key 并把结果附加到代理上。
type pendingProxy struct {
	key     Key
	loopKey Key
}

// proxySubstitution 是内部回卷信号：循环中某个接口条目被代理替换，
// 该条目的解析帧应放弃本次构造，改为交出代理。
// 它沿递归栈向上传播，途中不会被包装为 ConstructionError。
type proxySubstitution struct {
	key   Key
	proxy any
}

func (e *proxySubstitution) Error() string {
	return fmt.Sprintf("di: %s 已由代理替换", e.key)
}

// isProxySignal 报告 err 是否为内部代理替换信号。
func isProxySignal(err error) bool {
	_, ok := err.(*proxySubstitution)
	return ok
}

// InjectionContext 是单次根解析请求的瞬态跟踪结构。
//
// 它记录本调用链上正在构造的 Key（环检测）、本轮已产出的实例
// （子请求去重）以及调用方显式覆盖的值。不同根解析各自持有
// 独立的上下文，绝不跨线程共享。
type InjectionContext struct {
	injector *Injector

	// overrides 由调用方预置，最先查询，命中即跳过全部构造。
	overrides map[Key]any

	// inFlight 是构造中的 Key 栈；positions 提供 O(1) 的包含检查。
	inFlight  []Key
	positions map[Key]int

	// constructed 中的条目要么是完整可用的实例，要么是实现了
	// SetDelegate 的代理；代理条目在同 Key 构造完成时附加委托目标，
	// 而不是覆盖表项——已注入的消费者持有的是代理引用。
	constructed map[Key]any
	proxied     map[Key]bool

	// finalized 标记由作用域缓存层在其临界区内完成收尾（成员注入、
	// 代理委托）的 Key，对应解析帧不再重复处理。
	finalized map[Key]bool

	pending []pendingProxy

	rootKey Key
	rooted  bool
}

func newInjectionContext(injector *Injector) *InjectionContext {
	return &InjectionContext{
		injector:    injector,
		overrides:   make(map[Key]any),
		positions:   make(map[Key]int),
		constructed: make(map[Key]any),
		proxied:     make(map[Key]bool),
		finalized:   make(map[Key]bool),
	}
}

// SetOverride 为 key 预置值，解析时绕过构造直接返回。
// 用 di.Nil 表示显式注入 nil。
func (c *InjectionContext) SetOverride(key Key, value any) {
	c.overrides[key] = value
}

// Injector 返回上下文所属的注入器。
func (c *InjectionContext) Injector() *Injector {
	return c.injector
}

// Resolve 在本上下文中解析 key。
//
// 这是核心状态机：覆盖检查 → 已构造检查 → 环检测（必要时代理替换）
// → 入栈 → 委托绑定构造 → 构造完成（成员注入、代理委托）→
// 根请求完成时清理瞬态状态。
func (c *InjectionContext) Resolve(key Key) (any, error) {
	// 1. 覆盖
	if v, ok := c.overrides[key]; ok {
		if _, isNil := v.(nilValue); isNil {
			return nil, nil
		}
		return v, nil
	}

	// 2. 已构造（可能是代理）
	if v, ok := c.constructed[key]; ok {
		return v, nil
	}

	// 3. 环检测
	if pos, ok := c.positions[key]; ok {
		return c.substituteProxy(key, pos)
	}

	if !c.rooted {
		c.rootKey = key
		c.rooted = true
	}

	binding, err := c.injector.lookup(key)
	if err != nil {
		return nil, err
	}

	// 4. 入栈
	c.push(key)

	// 5. 构造（参数解析递归重入本算法）
	result, fresh, err := binding.provider(c)
	if err != nil {
		c.pop(key)
		if sub, ok := err.(*proxySubstitution); ok {
			if sub.key == key {
				// 本帧的条目被环上的回边代理替换：放弃构造，交出代理。
				// 真正的实例在环被打破后经 pending 补齐。
				return c.finish(key, sub.proxy)
			}
			// 信号属于更下方的帧，原样上抛
			return nil, err
		}
		return nil, &ConstructionError{Key: key, Cause: err}
	}

	// 6. 构造完成（作用域层已收尾的结果直接交出）
	if fresh {
		result, err = c.constructDone(key, result)
	} else if !c.finalized[key] {
		result, err = c.recordCached(key, result)
	}
	c.pop(key)
	if err != nil {
		return nil, err
	}
	return c.finish(key, result)
}

// finish 处理根请求完成：补齐全部遗留代理并清空瞬态缓存，
// 使上下文可被同一调用链上的下一个独立请求复用。
func (c *InjectionContext) finish(key Key, result any) (any, error) {
	if c.rooted && key == c.rootKey && len(c.inFlight) == 0 {
		if err := c.drainAll(); err != nil {
			c.reset()
			return nil, err
		}
		c.reset()
	}
	return result, nil
}

// constructDone 记录构造结果并执行成员注入。
//
// 若该 Key 在构造期间被代理替换过，先对真实结果做成员注入，
// 再附加委托目标——顺序不可颠倒：代理在成员注入完成前不得变为
// 可用，否则消费者可能在注入中途调用到半初始化的对象。
// 返回值始终是消费者共享的那个引用（有代理时返回代理）。
func (c *InjectionContext) constructDone(key Key, result any) (any, error) {
	if existing, ok := c.constructed[key]; ok && c.proxied[key] {
		if err := injectMembers(c, result); err != nil {
			return nil, err
		}
		if proxy, ok := existing.(DelegatingProxy); ok {
			proxy.SetDelegate(result)
		}
		if err := c.drainFor(key); err != nil {
			return nil, err
		}
		return existing, nil
	}

	c.constructed[key] = result
	if err := injectMembers(c, result); err != nil {
		return nil, err
	}
	if err := c.drainFor(key); err != nil {
		return nil, err
	}
	return result, nil
}

// recordCached 记录作用域缓存命中的实例。
// 实例在首次构造时已完成成员注入，这里只做本轮去重；
// 若本轮已为该 Key 生成过代理，将缓存实例附加为委托目标。
func (c *InjectionContext) recordCached(key Key, result any) (any, error) {
	if existing, ok := c.constructed[key]; ok && c.proxied[key] {
		if proxy, ok := existing.(DelegatingProxy); ok {
			proxy.SetDelegate(result)
		}
		return existing, nil
	}
	c.constructed[key] = result
	return result, nil
}

// substituteProxy 处理回边请求：在环段（key 的栈位置到栈顶）中
// 自最近入栈者向后找第一个可代理的接口条目。
//
//   - 条目即请求本身：直接交出代理，构造帧稍后附加委托目标
//   - 条目在请求下方：发出回卷信号，由该条目的解析帧接住并交出代理
//   - 环上没有可代理的接口：UnproxyableCycleError，携带完整链
func (c *InjectionContext) substituteProxy(key Key, pos int) (any, error) {
	for i := len(c.inFlight) - 1; i >= pos; i-- {
		entryKey := c.inFlight[i]
		if entryKey.Type().Kind() != reflect.Interface || c.proxied[entryKey] {
			continue
		}
		factory, ok := c.injector.proxyFactory(entryKey.Type())
		if !ok {
			continue
		}
		proxy := factory()
		if _, ok := proxy.(DelegatingProxy); !ok {
			return nil, fmt.Errorf("di: %s 的代理工厂返回值未实现 DelegatingProxy", entryKey)
		}
		c.constructed[entryKey] = proxy
		c.proxied[entryKey] = true

		if entryKey == key {
			return proxy, nil
		}
		c.pending = append(c.pending, pendingProxy{key: entryKey, loopKey: key})
		return nil, &proxySubstitution{key: entryKey, proxy: proxy}
	}

	chain := make([]Key, 0, len(c.inFlight)-pos+1)
	chain = append(chain, c.inFlight[pos:]...)
	chain = append(chain, key)
	return nil, &UnproxyableCycleError{Chain: chain}
}

// drainFor 补齐以 key 为回边目标的遗留代理：key 构造完成即环被打破，
// 重新构造被代理的条目并附加委托目标。
func (c *InjectionContext) drainFor(key Key) error {
	return c.drain(func(p pendingProxy) bool { return p.loopKey == key })
}

// drainAll 在根请求收尾时补齐全部遗留代理。
func (c *InjectionContext) drainAll() error {
	return c.drain(func(pendingProxy) bool { return true })
}

func (c *InjectionContext) drain(match func(pendingProxy) bool) error {
	for {
		var next *pendingProxy
		rest := c.pending[:0]
		for _, p := range c.pending {
			if next == nil && match(p) {
				entry := p
				next = &entry
			} else {
				rest = append(rest, p)
			}
		}
		c.pending = rest
		if next == nil {
			return nil
		}
		if err := c.rebuild(next.key); err != nil {
			return err
		}
	}
}

// rebuild 绕过已构造检查，直接为已代理的 key 执行一次真实构造。
// 构造完成路径会对结果做成员注入并附加到代理上。
func (c *InjectionContext) rebuild(key Key) error {
	binding, err := c.injector.lookup(key)
	if err != nil {
		return err
	}
	c.push(key)
	result, fresh, err := binding.provider(c)
	if err != nil {
		c.pop(key)
		if isProxySignal(err) {
			return err
		}
		return &ConstructionError{Key: key, Cause: err}
	}
	if fresh {
		_, err = c.constructDone(key, result)
	} else if !c.finalized[key] {
		_, err = c.recordCached(key, result)
	}
	c.pop(key)
	return err
}

// currentKey 返回当前正在构造的 Key（构造期间 inFlight 栈顶即本帧）。
func (c *InjectionContext) currentKey() Key {
	return c.inFlight[len(c.inFlight)-1]
}

// finalizeScoped 由作用域缓存策略在其临界区内调用：对新构造的实例
// 立即执行构造收尾（成员注入、代理委托、补齐回边），并把该 Key 标记
// 为已收尾。缓存条目由此只发布完整初始化的实例——并发解析者经缓存
// 命中拿到的对象绝不处于注入中途。返回消费者应共享的引用。
func (c *InjectionContext) finalizeScoped(result any) (any, error) {
	key := c.currentKey()
	shared, err := c.constructDone(key, result)
	if err != nil {
		return nil, err
	}
	c.finalized[key] = true
	return shared, nil
}

func (c *InjectionContext) push(key Key) {
	c.positions[key] = len(c.inFlight)
	c.inFlight = append(c.inFlight, key)
}

func (c *InjectionContext) pop(key Key) {
	if n := len(c.inFlight); n > 0 && c.inFlight[n-1] == key {
		c.inFlight = c.inFlight[:n-1]
	}
	delete(c.positions, key)
}

// reset 清空瞬态状态，保持上下文可复用且不泄漏到下一个请求。
func (c *InjectionContext) reset() {
	c.overrides = make(map[Key]any)
	c.inFlight = c.inFlight[:0]
	c.positions = make(map[Key]int)
	c.constructed = make(map[Key]any)
	c.proxied = make(map[Key]bool)
	c.finalized = make(map[Key]bool)
	c.pending = nil
	c.rootKey = Key{}
	c.rooted = false
}
