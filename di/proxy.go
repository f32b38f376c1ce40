package di

import (
	"reflect"
	"sync"
)

// DelegatingProxy 是循环引用代理必须实现的能力。
//
// 代理是某个接口类型的占位实现：所有接口方法在委托目标就绪前调用
// 必须 panic ProxyNotReadyError，就绪后原样转发参数和返回值。
// equals/字符串化等行为同样转发，代理自身不得表现出独立的标识语义。
//
// 委托目标允许被重复赋值：构造完成逻辑可能防御性地多次触发，
// 重新赋值是幂等修复而不是错误。
type DelegatingProxy interface {
	// SetDelegate 附加真实的委托目标。
	SetDelegate(delegate any)
	// DelegateReady 报告委托目标是否已附加。
	DelegateReady() bool
}

// ProxyFactory 为某个接口类型创建代理实例。
// 返回值必须同时实现目标接口和 DelegatingProxy。
//
// Go 没有运行时合成接口实现的设施，代理类型按接口逐个手写
// （或由生成步骤产出），再注册到 ProxyRegistry。
type ProxyFactory func() any

// ProxyRegistry 维护接口类型到代理工厂的映射。
// 注入器持有一个注册表；子注入器查不到时回溯父注入器。
type ProxyRegistry struct {
	mu        sync.RWMutex
	factories map[reflect.Type]ProxyFactory
}

func newProxyRegistry() *ProxyRegistry {
	return &ProxyRegistry{factories: make(map[reflect.Type]ProxyFactory)}
}

// register 登记接口类型的代理工厂，重复登记覆盖旧工厂。
func (r *ProxyRegistry) register(iface reflect.Type, factory ProxyFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[iface] = factory
}

func (r *ProxyRegistry) lookup(iface reflect.Type) (ProxyFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[iface]
	return f, ok
}

// ProxyBase 是手写代理类型的可嵌入基座，提供委托目标的存取。
//
// 典型代理写法：
//
//	type greeterProxy struct {
//		di.ProxyBase
//	}
//
//	func (p *greeterProxy) Greet(name string) string {
//		return p.Delegate("Greeter").(Greeter).Greet(name)
//	}
type ProxyBase struct {
	mu       sync.RWMutex
	delegate any
	ready    bool
}

// SetDelegate 附加委托目标，重复赋值直接覆盖。
func (p *ProxyBase) SetDelegate(delegate any) {
	p.mu.Lock()
	p.delegate = delegate
	p.ready = true
	p.mu.Unlock()
}

// DelegateReady 报告委托目标是否已附加。
func (p *ProxyBase) DelegateReady() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// Delegate 返回委托目标；尚未就绪时 panic ProxyNotReadyError，
// iface 用于在诊断信息中点名是哪个接口的代理被提前调用。
func (p *ProxyBase) Delegate(iface string) any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ready {
		panic(&ProxyNotReadyError{Interface: iface})
	}
	return p.delegate
}
