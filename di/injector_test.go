package di_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gocrud/inject/di"
)

type Database struct {
	DSN string
}

type Repo struct {
	DB *Database
}

func NewRepo(db *Database) *Repo { return &Repo{DB: db} }

// 未注册的具体类型走即时绑定合成
func TestJustInTimeBinding(t *testing.T) {
	injector := di.New()
	di.RegisterInstance[*Database](injector, &Database{DSN: "sqlite://test"})

	// *Repo 未注册，但有即时合成的零参构造 + 标签字段注入可走；
	// 这里注册构造函数版本验证显式构造优先
	di.RegisterMembers[*Repo](injector, di.Members{Constructor: NewRepo})

	repo, err := di.Resolve[*Repo](injector)
	if err != nil {
		t.Fatalf("即时绑定解析失败: %v", err)
	}
	if repo.DB == nil || repo.DB.DSN != "sqlite://test" {
		t.Errorf("依赖未正确注入: %+v", repo)
	}
}

// 未注册且未声明构造的结构体指针：零参合成 + 标签注入
type tagged struct {
	DB    *Database `inject:""`
	Cache *Database `inject:"cache,optional"`
}

func TestJustInTimeZeroConstruction(t *testing.T) {
	injector := di.New()
	di.RegisterInstance[*Database](injector, &Database{DSN: "primary"})

	v, err := injector.Instance(di.KeyFor[*tagged]())
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	got := v.(*tagged)
	if got.DB == nil || got.DB.DSN != "primary" {
		t.Errorf("标签字段未注入: %+v", got)
	}
	if got.Cache != nil {
		t.Error("可选依赖缺失时应保持 nil")
	}
}

// 接口没有绑定也没有重定向：UnresolvableBindingError
func TestUnresolvableInterface(t *testing.T) {
	injector := di.New()

	_, err := di.Resolve[Greeter](injector)
	var unresolvable *di.UnresolvableBindingError
	if !errors.As(err, &unresolvable) {
		t.Fatalf("期望 UnresolvableBindingError，得到 %v", err)
	}
}

// 重复安装同一 Key：后写覆盖先写
func TestInstallLastWriteWins(t *testing.T) {
	injector := di.New()
	di.RegisterInstance[string](injector, "first")
	di.RegisterInstance[string](injector, "second")

	got, err := di.Resolve[string](injector)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if got != "second" {
		t.Errorf("后安装的绑定应覆盖先前的，得到 %q", got)
	}
}

// 限定符隔离：同类型不同限定符的绑定互不串扰
func TestQualifierIsolation(t *testing.T) {
	injector := di.New()
	di.RegisterInstance[string](injector, "va", di.Named("a"))
	di.RegisterInstance[string](injector, "vb", di.Named("b"))

	a, err := di.Resolve[string](injector, di.Named("a"))
	if err != nil {
		t.Fatalf("解析 a 失败: %v", err)
	}
	b, err := di.Resolve[string](injector, di.Named("b"))
	if err != nil {
		t.Fatalf("解析 b 失败: %v", err)
	}
	if a != "va" || b != "vb" {
		t.Errorf("限定符绑定互相串扰: a=%q b=%q", a, b)
	}

	// 无限定符请求不应命中带限定符的绑定
	if _, err := di.Resolve[string](injector); err == nil {
		t.Error("无限定符请求不应命中带限定符的绑定")
	}
}

// 层级查找：子注入器未覆盖时回溯父注入器，覆盖后独立
func TestHierarchicalLookup(t *testing.T) {
	parent := di.New()
	di.RegisterInstance[string](parent, "parent-value")

	child := parent.Child()
	got, err := di.Resolve[string](child)
	if err != nil || got != "parent-value" {
		t.Fatalf("子注入器应回溯父绑定: %v %q", err, got)
	}

	di.RegisterInstance[string](child, "child-value")
	got, _ = di.Resolve[string](child)
	if got != "child-value" {
		t.Errorf("子注入器的覆盖绑定应生效，得到 %q", got)
	}
	got, _ = di.Resolve[string](parent)
	if got != "parent-value" {
		t.Errorf("父注入器不应受子覆盖影响，得到 %q", got)
	}
}

// 覆盖值最先查询，绕过全部构造；Nil 哨兵注入真正的 nil
func TestResolveOverrides(t *testing.T) {
	injector := di.New()
	constructed := false
	if err := di.RegisterConstructor[*Database](injector, func() *Database {
		constructed = true
		return &Database{DSN: "real"}
	}); err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	fake := &Database{DSN: "fake"}
	v, err := injector.Instance(di.KeyFor[*Database](), di.WithOverride(di.KeyFor[*Database](), fake))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if v != fake {
		t.Error("覆盖值应绕过构造直接返回")
	}
	if constructed {
		t.Error("存在覆盖时不应执行构造")
	}

	v, err = injector.Instance(di.KeyFor[*Database](), di.WithOverride(di.KeyFor[*Database](), di.Nil))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if v != nil {
		t.Errorf("Nil 哨兵应注入 nil，得到 %v", v)
	}
}

// 上下文复用不泄漏：上一请求的覆盖/缓存不影响下一请求
func TestSequentialResolutionsDoNotLeak(t *testing.T) {
	injector := di.New()
	count := 0
	if err := di.RegisterConstructor[*Database](injector, func() *Database {
		count++
		return &Database{DSN: "real"}
	}); err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	fake := &Database{DSN: "fake"}
	first, _ := injector.Instance(di.KeyFor[*Database](), di.WithOverride(di.KeyFor[*Database](), fake))
	if first != fake {
		t.Fatal("第一次请求应返回覆盖值")
	}

	second, err := injector.Instance(di.KeyFor[*Database]())
	if err != nil {
		t.Fatalf("第二次请求失败: %v", err)
	}
	if second == fake {
		t.Error("上一请求的覆盖不应悄悄满足下一请求")
	}
	if count != 1 {
		t.Errorf("第二次请求应真正构造，构造次数 = %d", count)
	}

	// 无作用域绑定：两次独立请求产出不同实例
	third, _ := injector.Instance(di.KeyFor[*Database]())
	if third == second {
		t.Error("无作用域绑定的两次独立请求不应复用实例")
	}
}

// 动态绑定来源在常规查找落空后被咨询
func TestDynamicSource(t *testing.T) {
	injector := di.New()
	target := di.KeyFor[Greeter]()
	injector.InstallDynamic(func(key di.Key) (*di.UninstalledBinding, bool) {
		if key != target {
			return nil, false
		}
		return di.Instance(Greeter(&greeterImpl{}), key), true
	})

	v, err := injector.Instance(target)
	if err != nil {
		t.Fatalf("动态绑定解析失败: %v", err)
	}
	if _, ok := v.(*greeterImpl); !ok {
		t.Errorf("期望 greeterImpl，得到 %T", v)
	}
}

// Resolve 返回延迟句柄；不可解析的 Key 在 Resolve 时即失败
func TestResolveHandle(t *testing.T) {
	injector := di.New()
	di.RegisterInstance[string](injector, "value")

	handle, err := injector.Resolve(di.KeyFor[string]())
	if err != nil {
		t.Fatalf("Resolve 失败: %v", err)
	}
	v, err := handle.Get()
	if err != nil || v != "value" {
		t.Errorf("句柄解析失败: %v %v", v, err)
	}

	if _, err := injector.Resolve(di.KeyOf(reflect.TypeOf((*Greeter)(nil)).Elem())); err == nil {
		t.Error("不可解析的 Key 应在 Resolve 时失败")
	}
}
