package di

import (
	"sync"
	"testing"
)

// ===== 基准测试用的类型定义 =====

type BenchLogger interface {
	Log(msg string)
}

type BenchConsoleLogger struct {
	ID int
}

func (l *BenchConsoleLogger) Log(msg string) {}

var benchLoggerCounter int
var benchLoggerMu sync.Mutex

func NewBenchLogger() BenchLogger {
	benchLoggerMu.Lock()
	defer benchLoggerMu.Unlock()
	benchLoggerCounter++
	return &BenchConsoleLogger{ID: benchLoggerCounter}
}

type BenchRepository struct {
	Logger BenchLogger
}

func NewBenchRepository(logger BenchLogger) *BenchRepository {
	return &BenchRepository{Logger: logger}
}

type BenchService struct {
	Repo *BenchRepository
}

func NewBenchService(repo *BenchRepository) *BenchService {
	return &BenchService{Repo: repo}
}

func newBenchInjector(b *testing.B, singleton bool) *Injector {
	b.Helper()
	benchLoggerCounter = 0
	injector := New()
	binding, err := Constructor(NewBenchLogger, KeyFor[BenchLogger]())
	if err != nil {
		b.Fatalf("构造绑定失败: %v", err)
	}
	if singleton {
		binding = binding.InSingleton()
	}
	if err := injector.Install(binding); err != nil {
		b.Fatalf("安装失败: %v", err)
	}
	return injector
}

// ===== 单例作用域压测 =====

func BenchmarkSingletonResolve(b *testing.B) {
	injector := newBenchInjector(b, true)
	key := KeyFor[BenchLogger]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = injector.Instance(key)
	}
}

func BenchmarkSingletonResolveParallel(b *testing.B) {
	injector := newBenchInjector(b, true)
	key := KeyFor[BenchLogger]()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = injector.Instance(key)
		}
	})
}

// ===== 无作用域压测 =====

func BenchmarkTransientResolve(b *testing.B) {
	injector := newBenchInjector(b, false)
	key := KeyFor[BenchLogger]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = injector.Instance(key)
	}
}

func BenchmarkTransientResolveParallel(b *testing.B) {
	injector := newBenchInjector(b, false)
	key := KeyFor[BenchLogger]()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = injector.Instance(key)
		}
	})
}

// ===== 依赖链压测 =====

func BenchmarkDependencyChainResolve(b *testing.B) {
	injector := newBenchInjector(b, true)
	repoBinding, err := Constructor(NewBenchRepository, KeyFor[*BenchRepository]())
	if err != nil {
		b.Fatalf("构造绑定失败: %v", err)
	}
	svcBinding, err := Constructor(NewBenchService, KeyFor[*BenchService]())
	if err != nil {
		b.Fatalf("构造绑定失败: %v", err)
	}
	if err := injector.Install(repoBinding); err != nil {
		b.Fatalf("安装失败: %v", err)
	}
	if err := injector.Install(svcBinding); err != nil {
		b.Fatalf("安装失败: %v", err)
	}
	key := KeyFor[*BenchService]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = injector.Instance(key)
	}
}

// ===== 子注入器回溯压测 =====

func BenchmarkHierarchicalResolve(b *testing.B) {
	parent := newBenchInjector(b, true)
	child := parent.Child()
	key := KeyFor[BenchLogger]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = child.Instance(key)
	}
}

// ===== Key 构造压测 =====

func BenchmarkKeyConstruction(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = KeyFor[*BenchRepository](Named("primary"))
	}
}
