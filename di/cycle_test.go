package di_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/gocrud/inject/di"
)

// ---------------- 循环依赖测试用类型 ----------------

// Greeter 是环上的可代理接口
type Greeter interface {
	Greet() string
	Owner() *RootSvc
}

// greeterImpl 依赖 RootSvc，形成 RootSvc -> Greeter -> RootSvc 的环
type greeterImpl struct {
	root *RootSvc
}

func NewGreeterImpl(root *RootSvc) *greeterImpl {
	return &greeterImpl{root: root}
}

func (g *greeterImpl) Greet() string   { return "hello" }
func (g *greeterImpl) Owner() *RootSvc { return g.root }

// RootSvc 依赖 Greeter 接口
type RootSvc struct {
	G Greeter
}

func NewRootSvc(g Greeter) *RootSvc {
	return &RootSvc{G: g}
}

// greeterProxy 是 Greeter 的手写循环引用代理
type greeterProxy struct {
	di.ProxyBase
}

func (p *greeterProxy) Greet() string   { return p.Delegate("Greeter").(Greeter).Greet() }
func (p *greeterProxy) Owner() *RootSvc { return p.Delegate("Greeter").(Greeter).Owner() }

// 不可代理的环：两个具体类型互相依赖
type ConcreteA struct{ C *ConcreteC }
type ConcreteC struct{ A *ConcreteA }

func NewConcreteA(c *ConcreteC) *ConcreteA { return &ConcreteA{C: c} }
func NewConcreteC(a *ConcreteA) *ConcreteC { return &ConcreteC{A: a} }

func newCycleInjector(t *testing.T) *di.Injector {
	t.Helper()
	injector := di.New()
	if err := di.RegisterConstructor[*RootSvc](injector, NewRootSvc); err != nil {
		t.Fatalf("注册 RootSvc 失败: %v", err)
	}
	if err := di.RegisterConstructor[Greeter](injector, NewGreeterImpl); err != nil {
		t.Fatalf("注册 Greeter 失败: %v", err)
	}
	di.RegisterProxy[Greeter](injector, func() Greeter { return &greeterProxy{} })
	return injector
}

// 接口代理打破环：构造成功，且实现持有的 RootSvc 与根返回值同一引用
func TestCycleResolvedThroughInterfaceProxy(t *testing.T) {
	injector := newCycleInjector(t)

	root, err := di.Resolve[*RootSvc](injector)
	if err != nil {
		t.Fatalf("构造 RootSvc 失败: %v", err)
	}
	if root.G == nil {
		t.Fatal("RootSvc.G 不应为 nil")
	}

	// 注入的是代理，且委托目标已就绪
	proxy, ok := root.G.(di.DelegatingProxy)
	if !ok {
		t.Fatalf("期望注入代理，得到 %T", root.G)
	}
	if !proxy.DelegateReady() {
		t.Fatal("根解析完成后代理委托目标应已就绪")
	}

	// 方法转发正常
	if got := root.G.Greet(); got != "hello" {
		t.Errorf("Greet() = %q, 期望 hello", got)
	}

	// 环另一侧注入的 RootSvc 与根返回值必须同一引用
	if root.G.Owner() != root {
		t.Error("greeterImpl 注入的 RootSvc 与根返回值不是同一引用")
	}
}

// 代理在委托目标就绪前被调用必须 panic ProxyNotReadyError
func TestProxyNotReady(t *testing.T) {
	proxy := &greeterProxy{}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("期望 panic")
		}
		notReady, ok := r.(*di.ProxyNotReadyError)
		if !ok {
			t.Fatalf("期望 ProxyNotReadyError，得到 %T", r)
		}
		if notReady.Interface != "Greeter" {
			t.Errorf("错误应点名接口 Greeter，得到 %s", notReady.Interface)
		}
	}()
	proxy.Greet()
}

// 委托目标允许幂等地重复赋值
func TestProxyDelegateReassignment(t *testing.T) {
	proxy := &greeterProxy{}
	first := &greeterImpl{}
	second := &greeterImpl{}

	proxy.SetDelegate(first)
	proxy.SetDelegate(second)

	if proxy.Delegate("Greeter") != second {
		t.Error("重复赋值应直接覆盖为新的委托目标")
	}
}

// 环上没有接口：必须失败，错误携带完整依赖链并点名两端
func TestUnproxyableCycle(t *testing.T) {
	injector := di.New()
	if err := di.RegisterConstructor[*ConcreteA](injector, NewConcreteA); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if err := di.RegisterConstructor[*ConcreteC](injector, NewConcreteC); err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	_, err := di.Resolve[*ConcreteA](injector)
	if err == nil {
		t.Fatal("期望循环依赖错误")
	}

	var cycleErr *di.UnproxyableCycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("期望 UnproxyableCycleError，得到 %v", err)
	}
	if len(cycleErr.Chain) < 3 {
		t.Fatalf("依赖链应包含环的完整路径，得到 %v", cycleErr.Chain)
	}
	msg := cycleErr.Error()
	if !strings.Contains(msg, "ConcreteA") || !strings.Contains(msg, "ConcreteC") {
		t.Errorf("错误信息应同时点名 ConcreteA 和 ConcreteC: %s", msg)
	}
}

// 有接口但未注册代理工厂：同样无法打破环
func TestCycleWithoutProxyFactory(t *testing.T) {
	injector := di.New()
	if err := di.RegisterConstructor[*RootSvc](injector, NewRootSvc); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if err := di.RegisterConstructor[Greeter](injector, NewGreeterImpl); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	// 不注册代理工厂

	_, err := di.Resolve[*RootSvc](injector)
	var cycleErr *di.UnproxyableCycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("期望 UnproxyableCycleError，得到 %v", err)
	}
}

// 构造失败沿途逐层标注正在构建的 Key
func TestConstructionErrorWrapping(t *testing.T) {
	injector := di.New()
	boom := errors.New("boom")
	if err := di.RegisterConstructor[*ConcreteA](injector, func(c *ConcreteC) (*ConcreteA, error) {
		return &ConcreteA{C: c}, nil
	}); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	if err := di.RegisterConstructor[*ConcreteC](injector, func() (*ConcreteC, error) {
		return nil, boom
	}); err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	_, err := di.Resolve[*ConcreteA](injector)
	if err == nil {
		t.Fatal("期望构造失败")
	}
	var ce *di.ConstructionError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 ConstructionError，得到 %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("底层失败应可通过 errors.Is 取回")
	}
	if !strings.Contains(err.Error(), "ConcreteA") {
		t.Errorf("错误应点名正在构建的 Key: %v", err)
	}
}
