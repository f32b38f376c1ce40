package di_test

import (
	"testing"

	"github.com/gocrud/inject/di"
)

// ---------------- Provider 测试用类型 ----------------

// ProvRoot 是根服务接口，其实现依赖 ProvHolder
type ProvRoot interface {
	Holder() *ProvHolder
}

type provRootImpl struct {
	holder *ProvHolder
}

func (r *provRootImpl) Holder() *ProvHolder { return r.holder }

type provRootProxy struct {
	di.ProxyBase
}

func (p *provRootProxy) Holder() *ProvHolder {
	return p.Delegate("ProvRoot").(ProvRoot).Holder()
}

// ProvHolder 在构造期间就通过 Provider 取回正在构造它的根
type ProvHolder struct {
	captured ProvRoot
}

// 构造函数内调用 provider.Get()：返回值必须与触发本次构造的
// 根实例同一引用（此处根尚在构造中，拿到的是其代理）
func TestProviderIdentityDuringConstruction(t *testing.T) {
	injector := di.New()
	if err := di.RegisterConstructor[ProvRoot](injector, func(h *ProvHolder) ProvRoot {
		return &provRootImpl{holder: h}
	}); err != nil {
		t.Fatalf("注册 ProvRoot 失败: %v", err)
	}
	if err := di.RegisterConstructor[*ProvHolder](injector, func(p di.Provider[ProvRoot]) *ProvHolder {
		return &ProvHolder{captured: p.MustGet()}
	}); err != nil {
		t.Fatalf("注册 ProvHolder 失败: %v", err)
	}
	di.RegisterProxy[ProvRoot](injector, func() ProvRoot { return &provRootProxy{} })
	di.BindProvider[ProvRoot](injector)

	root, err := di.Resolve[ProvRoot](injector)
	if err != nil {
		t.Fatalf("构造 ProvRoot 失败: %v", err)
	}

	holder := root.Holder()
	if holder == nil {
		t.Fatal("根实现应持有 ProvHolder")
	}
	if holder.captured != root {
		t.Error("构造期间 provider.Get() 的返回值应与根返回值同一引用")
	}
	proxy, ok := root.(di.DelegatingProxy)
	if !ok {
		t.Fatalf("期望代理，得到 %T", root)
	}
	if !proxy.DelegateReady() {
		t.Error("根解析完成后代理委托目标应已就绪")
	}
}

// 无活跃上下文时 Get 独立开新上下文；单例绑定下仍是同一实例
func TestProviderOutOfContext(t *testing.T) {
	injector := di.New()
	if err := di.RegisterSingleton[*StringHolderExt](injector, func() *StringHolderExt {
		return &StringHolderExt{Value: "single"}
	}); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	di.BindProvider[*StringHolderExt](injector)

	provider, err := di.Resolve[di.Provider[*StringHolderExt]](injector)
	if err != nil {
		t.Fatalf("解析 Provider 失败: %v", err)
	}

	direct := di.MustResolve[*StringHolderExt](injector)
	lazy, err := provider.Get()
	if err != nil {
		t.Fatalf("Get 失败: %v", err)
	}
	if lazy != direct {
		t.Error("单例绑定下 Provider.Get 应返回同一实例")
	}
}

// 无作用域绑定：每次 Get 独立构造
func TestProviderTransientGet(t *testing.T) {
	injector := di.New()
	count := 0
	if err := di.RegisterConstructor[*StringHolderExt](injector, func() *StringHolderExt {
		count++
		return &StringHolderExt{}
	}); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	di.BindProvider[*StringHolderExt](injector)

	provider := di.MustResolve[di.Provider[*StringHolderExt]](injector)
	first := provider.MustGet()
	second := provider.MustGet()
	if first == second {
		t.Error("无作用域绑定的两次 Get 不应复用实例")
	}
	if count != 2 {
		t.Errorf("期望构造 2 次，实际 %d 次", count)
	}
}

// 带限定符的 Provider 绑定解析对应限定符的目标
func TestProviderQualified(t *testing.T) {
	injector := di.New()
	di.RegisterInstance[string](injector, "qualified-value", di.Named("x"))
	di.BindProvider[string](injector, di.Named("x"))

	provider, err := di.Resolve[di.Provider[string]](injector, di.Named("x"))
	if err != nil {
		t.Fatalf("解析 Provider 失败: %v", err)
	}
	got, err := provider.Get()
	if err != nil || got != "qualified-value" {
		t.Errorf("限定符 Provider 解析失败: %q %v", got, err)
	}
}
