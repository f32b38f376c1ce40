package di

import "fmt"

// Handle 是某个 Key 的延迟解析句柄。
//
// Get 优先复用当前调用链上活跃的注入上下文：在构造函数内部调用时，
// 返回的是本轮解析中已经（或正在）产出的同一实例——对正在构造的
// 根对象而言是同一个引用（必要时是其代理）。没有活跃上下文时，
// Get 进入新的根上下文独立解析。
type Handle struct {
	injector *Injector
	key      Key
}

// Key 返回句柄解析的 Key。
func (h *Handle) Key() Key {
	return h.key
}

// Get 解析并返回实例。
func (h *Handle) Get() (any, error) {
	if ctx := h.injector.cell.Current(); ctx != nil {
		return ctx.Resolve(h.key)
	}
	return h.injector.Instance(h.key)
}

// MustGet 解析实例，失败时 panic。
func (h *Handle) MustGet() any {
	v, err := h.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Provider 是 Handle 的类型化包装，可作为构造函数参数注入，
// 用于把依赖的获取推迟到构造之后（打破环的另一种手段）。
type Provider[T any] struct {
	handle *Handle
}

// Get 解析并返回 T 的实例。
func (p Provider[T]) Get() (T, error) {
	var zero T
	v, err := p.handle.Get()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("di: 解析结果是 %T，期望 %s", v, p.handle.key)
	}
	return typed, nil
}

// MustGet 解析 T 的实例，失败时 panic。
func (p Provider[T]) MustGet() T {
	v, err := p.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// BindProvider 安装 Provider[T] 的绑定：注入 Provider[T] 的消费者
// 拿到一个解析 T（带给定限定符）的延迟句柄。
func BindProvider[T any](injector *Injector, quals ...Qualifier) {
	target := KeyFor[T](quals...)
	value := Provider[T]{handle: &Handle{injector: injector, key: target}}
	injector.MustInstall(Instance(value, KeyFor[Provider[T]](quals...)))
}
