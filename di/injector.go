package di

import (
	"fmt"
	"reflect"
	"sync"
)

// Injector 是绑定注册表：持有已安装的绑定、作用域注册表和代理注册表，
// 并负责把解析请求落到具体的绑定上。
//
// 查找自子向父回溯（层级覆盖）；未注册的具体类型走即时绑定合成。
// 安装期之后绑定表只在安装新绑定和填充即时绑定时变更，
// 两者都持锁，稳态读取并发安全。
type Injector struct {
	parent *Injector

	mu       sync.RWMutex
	bindings map[Key]*installedBinding
	dynamics []DynamicSource

	jitMu sync.Mutex
	jit   map[Key]*installedBinding

	scopeMu sync.RWMutex
	scopes  map[reflect.Type]ScopeApplier

	proxies    *ProxyRegistry
	classifier *memberClassifier
	cell       ContextCell
}

// New 创建根注入器，内置单例作用域。
func New() *Injector {
	i := &Injector{
		bindings:   make(map[Key]*installedBinding),
		jit:        make(map[Key]*installedBinding),
		scopes:     make(map[reflect.Type]ScopeApplier),
		proxies:    newProxyRegistry(),
		classifier: newMemberClassifier(),
		cell:       newGoroutineCell(),
	}
	i.scopes[singletonTagType] = newSingletonScope()
	return i
}

// Child 创建子注入器。
// 子注入器未覆盖的绑定和单例实例与父注入器共享；
// 重新绑定同一 Key 的子注入器获得自己独立的单例。
func (i *Injector) Child() *Injector {
	child := &Injector{
		parent:     i,
		bindings:   make(map[Key]*installedBinding),
		jit:        make(map[Key]*installedBinding),
		scopes:     make(map[reflect.Type]ScopeApplier),
		proxies:    newProxyRegistry(),
		classifier: i.classifier,
		cell:       i.cell,
	}
	// 子注入器的单例缓存独立：重新绑定的 Key 不与父实例混用
	child.scopes[singletonTagType] = newSingletonScope()
	return child
}

// Install 安装绑定，把绑定的全部 Key 注册到本地表。
//
// 重复安装同一 Key 不报错：后写覆盖先写（last-write-wins），
// 这是刻意选择的策略，用于支持测试和分环境的覆盖模式。
// 作用域标记无法解析时安装失败（ScopeResolutionError），
// 配置错误在安装期暴露而不是藏到解析期。
func (i *Injector) Install(binding *UninstalledBinding) error {
	if len(binding.keys) == 0 {
		return fmt.Errorf("di: 绑定没有任何 Key")
	}
	applier, err := i.resolveScope(binding)
	if err != nil {
		return err
	}

	base := func(ctx *InjectionContext) (any, bool, error) {
		v, err := binding.strategy.construct(ctx)
		return v, err == nil, err
	}
	if _, ok := binding.strategy.(*instanceStrategy); ok {
		base = instanceProvider(binding.strategy)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	primary := binding.keys[0]
	provider := base
	if applier != nil {
		// 多 Key 绑定共享同一个作用域缓存条目：一个绑定至多一个实例
		provider = applier.Apply(i, primary, base)
	}
	installed := &installedBinding{binding: binding, injector: i, provider: provider}
	for _, key := range binding.keys {
		i.bindings[key] = installed
	}
	return nil
}

// instanceProvider 包装现成值绑定：成员注入对同一个安装只执行一次。
// 现成值在多个根解析之间共享，每轮重复注入会让 Inject* 方法反复执行；
// 注入在锁内完成后条目才标记就绪，并发的首次解析也不会拿到注入中途的值。
func instanceProvider(strategy constructionStrategy) scopedProvider {
	var mu sync.Mutex
	injected := false

	return func(ctx *InjectionContext) (any, bool, error) {
		v, err := strategy.construct(ctx)
		if err != nil {
			return nil, false, err
		}

		mu.Lock()
		if injected {
			mu.Unlock()
			return v, false, nil
		}
		shared, err := ctx.finalizeScoped(v)
		if err != nil {
			mu.Unlock()
			return nil, false, err
		}
		injected = true
		mu.Unlock()
		return shared, false, nil
	}
}

// MustInstall 安装绑定，失败时 panic。用于启动期的固定装配。
func (i *Injector) MustInstall(bindings ...*UninstalledBinding) {
	for _, b := range bindings {
		if err := i.Install(b); err != nil {
			panic(err)
		}
	}
}

// InstallDynamic 注册动态绑定来源：常规查找落空后、即时合成之前咨询。
func (i *Injector) InstallDynamic(source DynamicSource) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dynamics = append(i.dynamics, source)
}

// RegisterScope 登记作用域标记对应的 ScopeApplier。
func (i *Injector) RegisterScope(tag reflect.Type, applier ScopeApplier) {
	i.scopeMu.Lock()
	defer i.scopeMu.Unlock()
	i.scopes[tag] = applier
}

// RegisterProxyFactory 登记接口类型的循环引用代理工厂。
func (i *Injector) RegisterProxyFactory(iface reflect.Type, factory ProxyFactory) {
	i.proxies.register(normalizeType(iface), factory)
}

// DeclareMembers 登记类型的显式注入点声明。
func (i *Injector) DeclareMembers(typ reflect.Type, members Members) {
	i.classifier.declare(typ, members)
}

// resolveScope 解析绑定声明的作用域标记。
func (i *Injector) resolveScope(binding *UninstalledBinding) (ScopeApplier, error) {
	if binding.scopeTag == nil {
		return nil, nil
	}
	for cur := i; cur != nil; cur = cur.parent {
		cur.scopeMu.RLock()
		applier, ok := cur.scopes[binding.scopeTag]
		cur.scopeMu.RUnlock()
		if ok {
			return applier, nil
		}
	}
	return nil, &ScopeResolutionError{Tag: binding.scopeTag.String(), Key: binding.keys[0]}
}

// proxyFactory 自子向父查找接口的代理工厂。
func (i *Injector) proxyFactory(iface reflect.Type) (ProxyFactory, bool) {
	for cur := i; cur != nil; cur = cur.parent {
		if f, ok := cur.proxies.lookup(iface); ok {
			return f, true
		}
	}
	return nil, false
}

// lookup 把 Key 解析为已安装的绑定：
// 本地表 → 父注入器 → 动态来源 → 即时合成。
func (i *Injector) lookup(key Key) (*installedBinding, error) {
	for cur := i; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		installed, ok := cur.bindings[key]
		cur.mu.RUnlock()
		if ok {
			return installed, nil
		}
	}

	for cur := i; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		dynamics := cur.dynamics
		cur.mu.RUnlock()
		for _, source := range dynamics {
			if binding, ok := source(key); ok {
				if err := i.Install(binding); err != nil {
					return nil, err
				}
				return i.lookup(key)
			}
		}
	}

	return i.jitBinding(key)
}

// jitBinding 为未注册的具体可实例化类型合成即时绑定。
// 接口（无重定向）直接失败：抽象类型没有可合成的构造方式。
func (i *Injector) jitBinding(key Key) (*installedBinding, error) {
	i.jitMu.Lock()
	defer i.jitMu.Unlock()
	if installed, ok := i.jit[key]; ok {
		return installed, nil
	}

	binding, err := i.synthesize(key)
	if err != nil {
		return nil, err
	}

	base := func(ctx *InjectionContext) (any, bool, error) {
		v, err := binding.strategy.construct(ctx)
		return v, err == nil, err
	}
	installed := &installedBinding{binding: binding, injector: i, provider: base}
	i.jit[key] = installed
	return installed, nil
}

func (i *Injector) synthesize(key Key) (*UninstalledBinding, error) {
	typ := key.Type()
	if typ.Kind() == reflect.Interface {
		return nil, &UnresolvableBindingError{Key: key}
	}

	c, err := i.classifier.classify(typ)
	if err != nil {
		return nil, err
	}

	// 显式注入构造函数优先
	if c.ctor != nil {
		params := make([]Key, c.ctor.numIn())
		for idx := range params {
			params[idx] = KeyOf(c.ctor.in(idx))
		}
		return &UninstalledBinding{
			keys:     []Key{key},
			strategy: &callableStrategy{call: c.ctor, params: params},
		}, nil
	}

	structType, ok := pointeeStruct(typ)
	if !ok && typ.Kind() != reflect.Struct {
		return nil, &NoInjectableConstructorError{Type: typ.String()}
	}

	// 记录式类型：全部导出字段即全部组件
	if c.allFields && ok {
		return &UninstalledBinding{
			keys:     []Key{key},
			strategy: &recordStrategy{structType: structType},
		}, nil
	}

	// 零参构造；带标签的字段随后由成员注入填充
	return &UninstalledBinding{
		keys:     []Key{key},
		strategy: &zeroStrategy{typ: typ},
	}, nil
}

// Resolve 把 Key 解析为 Provider。
// 绑定的可解析性此刻校验；构造推迟到 Provider.Get。
func (i *Injector) Resolve(key Key) (*Handle, error) {
	if _, err := i.lookup(key); err != nil {
		return nil, err
	}
	return &Handle{injector: i, key: key}, nil
}

// Instance 解析并构造 key 的实例：进入新的根注入上下文完成整个图。
// 选项可为本次请求预置覆盖值。
func (i *Injector) Instance(key Key, opts ...ResolveOption) (any, error) {
	ctx := newInjectionContext(i)
	for _, opt := range opts {
		opt(ctx)
	}
	exit := i.cell.Enter(ctx)
	defer exit()
	return ctx.Resolve(key)
}

// ResolveOption 配置单次根解析请求。
type ResolveOption func(*InjectionContext)

// WithOverride 为本次请求预置 key 的值，解析时绕过构造。
// 用 di.Nil 表示显式注入 nil。
func WithOverride(key Key, value any) ResolveOption {
	return func(ctx *InjectionContext) {
		ctx.SetOverride(key, value)
	}
}

// ContextCell 返回注入器的当前上下文存储单元。
func (i *Injector) ContextCell() ContextCell {
	return i.cell
}

// SetContextCell 替换上下文传播机制。
// 必须在任何解析开始前调用；宿主若有结构化并发调度，在此接入。
func (i *Injector) SetContextCell(cell ContextCell) {
	i.cell = cell
}

// WarmUp 急切构造本注入器上所有单例作用域的绑定。
// 配置错误借此在启动期暴露，而不是推迟到第一次请求。
func (i *Injector) WarmUp() error {
	i.mu.RLock()
	var keys []Key
	seen := make(map[*installedBinding]bool)
	for key, installed := range i.bindings {
		if installed.binding.scopeTag == singletonTagType && !seen[installed] {
			seen[installed] = true
			keys = append(keys, key)
		}
	}
	i.mu.RUnlock()

	for _, key := range keys {
		if _, err := i.Instance(key); err != nil {
			return err
		}
	}
	return nil
}

// zeroStrategy 构造类型的零值实例（结构体指针或结构体值）。
type zeroStrategy struct {
	typ reflect.Type
}

func (s *zeroStrategy) construct(ctx *InjectionContext) (any, error) {
	if s.typ.Kind() == reflect.Pointer {
		return reflect.New(s.typ.Elem()).Interface(), nil
	}
	return reflect.New(s.typ).Elem().Interface(), nil
}

func (s *zeroStrategy) describe() string { return "zero" }

// recordStrategy 按"规范全组件构造"实例化结构体指针：
// 每个导出字段都按类型解析并填充。
type recordStrategy struct {
	structType reflect.Type
}

func (s *recordStrategy) construct(ctx *InjectionContext) (any, error) {
	ptr := reflect.New(s.structType)
	elem := ptr.Elem()
	for idx := 0; idx < s.structType.NumField(); idx++ {
		field := s.structType.Field(idx)
		if !field.IsExported() {
			continue
		}
		dep, err := ctx.Resolve(KeyOf(field.Type))
		if err != nil {
			return nil, err
		}
		target := elem.Field(idx)
		target.Set(argValue(dep, target.Type()))
	}
	return ptr.Interface(), nil
}

func (s *recordStrategy) describe() string { return "record" }
