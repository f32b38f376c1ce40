package di

import (
	"fmt"
	"reflect"
)

// constructionStrategy 是绑定的构造策略。
// construct 在给定的注入上下文中产出一个实例，参数解析会重新进入同一上下文。
type constructionStrategy interface {
	construct(ctx *InjectionContext) (any, error)
	describe() string
}

// instanceStrategy 直接返回预先存在的值。
type instanceStrategy struct {
	value any
}

func (s *instanceStrategy) construct(ctx *InjectionContext) (any, error) {
	return s.value, nil
}

func (s *instanceStrategy) describe() string { return "instance" }

// providerStrategy 调用提供者函数创建值。
type providerStrategy struct {
	fn func(*Injector) (any, error)
}

func (s *providerStrategy) construct(ctx *InjectionContext) (any, error) {
	return s.fn(ctx.injector)
}

func (s *providerStrategy) describe() string { return "provider" }

// callableStrategy 调用构造函数或静态工厂，参数按声明顺序经由上下文解析。
// 构造函数与工厂在调用形态上一致，仅语义来源不同。
type callableStrategy struct {
	call    *callable
	params  []Key
	factory bool
}

func (s *callableStrategy) construct(ctx *InjectionContext) (any, error) {
	args := make([]reflect.Value, len(s.params))
	for i, paramKey := range s.params {
		dep, err := ctx.Resolve(paramKey)
		if err != nil {
			return nil, err
		}
		args[i] = argValue(dep, s.call.in(i))
	}
	return s.call.invoke(args)
}

func (s *callableStrategy) describe() string {
	if s.factory {
		return "factory"
	}
	return "constructor"
}

// argValue 将解析到的依赖转换为调用参数。
// nil 依赖（覆盖为 Nil 或可选缺失）用参数类型的零值表达。
func argValue(dep any, paramType reflect.Type) reflect.Value {
	if dep == nil {
		return reflect.Zero(paramType)
	}
	return reflect.ValueOf(dep)
}

// DynamicSource 按需为未注册的 Key 生成绑定。
// 返回 false 表示该来源不负责此 Key，解析继续走其他途径。
type DynamicSource func(key Key) (*UninstalledBinding, bool)

// UninstalledBinding 是尚未安装到注入器的绑定：
// 一组 Key、一个构造策略和可选的作用域标记。
// 构造完成后不可变，同一个绑定可以独立安装到多个注入器。
type UninstalledBinding struct {
	keys     []Key
	strategy constructionStrategy
	scopeTag reflect.Type
}

// Keys 返回绑定满足的全部 Key。
func (b *UninstalledBinding) Keys() []Key {
	out := make([]Key, len(b.keys))
	copy(out, b.keys)
	return out
}

// String 返回绑定的可读描述。
func (b *UninstalledBinding) String() string {
	return fmt.Sprintf("binding(%v, %s)", b.keys, b.strategy.describe())
}

// installedBinding 是绑定在某个注入器中的落地形态。
// provider 已应用作用域包装，解析时直接调用。
type installedBinding struct {
	binding  *UninstalledBinding
	injector *Injector
	provider scopedProvider
}

// scopedProvider 是经过作用域包装的构造入口。
// fresh 报告值是否在本次调用中新构造且尚未收尾：缓存命中返回 false，
// 上下文据此跳过重复的成员注入。缓存策略若在自己的临界区内调用
// finalizeScoped 完成收尾，同样返回 false 并交出已收尾的共享引用。
type scopedProvider func(ctx *InjectionContext) (value any, fresh bool, err error)

// Instance 构造一个直接复用现成值的绑定。
func Instance(value any, keys ...Key) *UninstalledBinding {
	if len(keys) == 0 {
		keys = []Key{KeyOf(reflect.TypeOf(value))}
	}
	return &UninstalledBinding{keys: keys, strategy: &instanceStrategy{value: value}}
}

// ProviderFunc 构造一个由提供者函数产出值的绑定。
func ProviderFunc(fn func(*Injector) (any, error), keys ...Key) *UninstalledBinding {
	return &UninstalledBinding{keys: keys, strategy: &providerStrategy{fn: fn}}
}

// Constructor 构造一个调用构造函数的绑定。
// fn 必须是函数；参数 Key 从函数签名推断（全部无限定符），
// 需要限定参数时改用 Factory 显式给出参数 Key。
// 未给出 keys 时，以第一个返回值的类型作为绑定 Key。
func Constructor(fn any, keys ...Key) (*UninstalledBinding, error) {
	call, err := newCallable(fn)
	if err != nil {
		return nil, err
	}
	params := make([]Key, call.numIn())
	for i := range params {
		params[i] = KeyOf(call.in(i))
	}
	if len(keys) == 0 {
		keys = []Key{KeyOf(call.out())}
	}
	return &UninstalledBinding{
		keys:     keys,
		strategy: &callableStrategy{call: call, params: params},
	}, nil
}

// Factory 构造一个调用静态工厂的绑定，参数 Key 显式给出。
// params 的数量必须与工厂函数的入参数量一致。
func Factory(fn any, params []Key, keys ...Key) (*UninstalledBinding, error) {
	call, err := newCallable(fn)
	if err != nil {
		return nil, err
	}
	if len(params) != call.numIn() {
		return nil, fmt.Errorf("di: 工厂参数 Key 数量 %d 与函数入参数量 %d 不一致", len(params), call.numIn())
	}
	if len(keys) == 0 {
		keys = []Key{KeyOf(call.out())}
	}
	return &UninstalledBinding{
		keys:     keys,
		strategy: &callableStrategy{call: call, params: params, factory: true},
	}, nil
}

// Bind 按 target 的形态构造绑定：函数走 Constructor，其余作为现成值。
// 框架层"实例或构造函数皆可"的注册入口建立在它之上。
func Bind(target any, keys ...Key) (*UninstalledBinding, error) {
	if target == nil {
		return nil, fmt.Errorf("di: 绑定目标不能为 nil")
	}
	if reflect.ValueOf(target).Kind() == reflect.Func {
		return Constructor(target, keys...)
	}
	return Instance(target, keys...), nil
}

// InScope 返回声明了作用域标记的绑定副本。
// 原绑定保持不可变。
func (b *UninstalledBinding) InScope(tag reflect.Type) *UninstalledBinding {
	clone := *b
	clone.scopeTag = tag
	return &clone
}

// InSingleton 返回声明为单例作用域的绑定副本。
func (b *UninstalledBinding) InSingleton() *UninstalledBinding {
	return b.InScope(singletonTagType)
}
