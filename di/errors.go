package di

import (
	"fmt"
	"strings"
)

// UnresolvableBindingError 表示请求的 Key 没有已安装的绑定，
// 且其类型无法即时实例化（接口或抽象类型没有绑定）。
type UnresolvableBindingError struct {
	Key Key
}

func (e *UnresolvableBindingError) Error() string {
	return fmt.Sprintf("di: 无法解析绑定 %s（未注册且不可即时构造）", e.Key)
}

// UnproxyableCycleError 表示存在循环依赖，但环上没有可代理的接口类型。
// Chain 携带完整的依赖链，便于定位应该引入接口或 Provider 间接层的位置。
type UnproxyableCycleError struct {
	// Chain 是从环的起点到回边请求的完整 Key 链。
	Chain []Key
}

func (e *UnproxyableCycleError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, k := range e.Chain {
		parts[i] = k.String()
	}
	return "di: 检测到不可代理的循环依赖: " + strings.Join(parts, " -> ")
}

// ProxyNotReadyError 表示循环引用代理在委托目标就绪前被调用。
// 通常意味着构造函数把代理泄漏给了同步调用方，而不是推迟使用。
type ProxyNotReadyError struct {
	// Interface 是代理实现的接口名。
	Interface string
}

func (e *ProxyNotReadyError) Error() string {
	return fmt.Sprintf("di: 代理 %s 的委托目标尚未就绪", e.Interface)
}

// AmbiguousConstructorError 表示同一类型注册了多个注入构造函数。
type AmbiguousConstructorError struct {
	Type string
}

func (e *AmbiguousConstructorError) Error() string {
	return fmt.Sprintf("di: 类型 %s 存在多个注入构造函数", e.Type)
}

// NoInjectableConstructorError 表示类型没有任何可用的注入构造函数。
type NoInjectableConstructorError struct {
	Type string
}

func (e *NoInjectableConstructorError) Error() string {
	return fmt.Sprintf("di: 类型 %s 没有可注入的构造函数", e.Type)
}

// ScopeResolutionError 表示绑定声明的作用域标记没有对应的 ScopeApplier。
// 这是配置错误，在安装绑定时立即暴露，不会推迟到解析阶段。
type ScopeResolutionError struct {
	Tag string
	Key Key
}

func (e *ScopeResolutionError) Error() string {
	return fmt.Sprintf("di: 绑定 %s 声明的作用域 %s 未注册", e.Key, e.Tag)
}

// ConstructionError 包装解析过程中工厂/构造函数/提供者抛出的失败，
// 并标注失败发生时正在构建的 Key。
type ConstructionError struct {
	Key   Key
	Cause error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("di: 构建 %s 失败: %v", e.Key, e.Cause)
}

func (e *ConstructionError) Unwrap() error {
	return e.Cause
}
