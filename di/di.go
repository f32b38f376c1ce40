package di

import (
	"fmt"
	"reflect"
)

// RegisterInstance 把现成的值注册为 T 的绑定。
//
// 使用示例: di.RegisterInstance[Configuration](injector, cfg)
func RegisterInstance[T any](injector *Injector, value T, quals ...Qualifier) {
	injector.MustInstall(Instance(value, KeyFor[T](quals...)))
}

// RegisterConstructor 把构造函数注册为 T 的绑定。
// ctor 的参数按声明顺序自动注入（无限定符）。
func RegisterConstructor[T any](injector *Injector, ctor any, quals ...Qualifier) error {
	binding, err := Constructor(ctor, KeyFor[T](quals...))
	if err != nil {
		return err
	}
	return injector.Install(binding)
}

// RegisterSingleton 把构造函数注册为 T 的单例绑定。
// 整个注入器生命周期内至多构造一次。
func RegisterSingleton[T any](injector *Injector, ctor any, quals ...Qualifier) error {
	binding, err := Constructor(ctor, KeyFor[T](quals...))
	if err != nil {
		return err
	}
	return injector.Install(binding.InSingleton())
}

// RegisterFactory 把静态工厂注册为 T 的绑定，参数 Key 显式给出。
func RegisterFactory[T any](injector *Injector, factory any, params []Key, quals ...Qualifier) error {
	binding, err := Factory(factory, params, KeyFor[T](quals...))
	if err != nil {
		return err
	}
	return injector.Install(binding)
}

// Resolve 从注入器解析 T 的实例。
func Resolve[T any](injector *Injector, quals ...Qualifier) (T, error) {
	var zero T
	v, err := injector.Instance(KeyFor[T](quals...))
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("di: 解析结果是 %T，期望 %v", v, TypeOf[T]())
	}
	return typed, nil
}

// MustResolve 解析 T 的实例，失败时 panic。
func MustResolve[T any](injector *Injector, quals ...Qualifier) T {
	v, err := Resolve[T](injector, quals...)
	if err != nil {
		panic(err)
	}
	return v
}

// RegisterProxy 登记接口 T 的循环引用代理工厂。
// factory 返回的代理必须同时实现 T 和 DelegatingProxy。
func RegisterProxy[T any](injector *Injector, factory func() T) {
	iface := TypeOf[T]()
	if iface.Kind() != reflect.Interface {
		panic(fmt.Sprintf("di: RegisterProxy 要求接口类型，得到 %v", iface))
	}
	injector.RegisterProxyFactory(iface, func() any { return factory() })
}

// RegisterMembers 登记类型 T 的显式注入点声明。
// T 通常是结构体指针类型。
func RegisterMembers[T any](injector *Injector, members Members) {
	injector.DeclareMembers(TypeOf[T](), members)
}

// RegisterScope 登记标记类型 T 对应的 ScopeApplier。
//
// 使用示例:
//
//	type RequestScoped struct{}
//	di.RegisterScope[RequestScoped](injector, myApplier)
func RegisterScope[T any](injector *Injector, applier ScopeApplier) {
	injector.RegisterScope(TypeOf[T](), applier)
}

// ScopeTag 返回标记类型 T 的作用域标记，配合 UninstalledBinding.InScope 使用。
func ScopeTag[T any]() reflect.Type {
	return TypeOf[T]()
}
