package config

import (
	"sync"
	"testing"
)

func TestValueStore(t *testing.T) {
	store := NewValueStore()

	data := map[string]any{"key": "value"}
	store.Store(data)

	loaded := store.Load()
	if loaded["key"] != "value" {
		t.Error("Load failed")
	}

	// Test concurrency
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Load()
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}

	path := "a:b.c"
	parts := cache.GetPathSegments(path)

	if len(parts) != 3 {
		t.Errorf("Expected 3 parts, got %d", len(parts))
	}
	if parts[0] != "a" || parts[1] != "b" || parts[2] != "c" {
		t.Error("Parse failed")
	}

	// Test cache hit
	parts2 := cache.GetPathSegments(path)
	if len(parts2) != 3 {
		t.Errorf("Expected 3 parts on second call, got %d", len(parts2))
	}
}

func TestBuildSnapshot(t *testing.T) {
	builder := NewConfigurationBuilder()
	builder.AddInMemory(map[string]any{
		"server": map[string]any{
			"host":  "localhost",
			"port":  8080,
			"debug": true,
		},
	})

	cfg, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := cfg.Get("server:host"); got != "localhost" {
		t.Errorf("Get(server:host) = %q", got)
	}
	if got := cfg.GetWithDefault("server:missing", "fallback"); got != "fallback" {
		t.Errorf("GetWithDefault = %q", got)
	}
	port, err := cfg.GetInt("server:port")
	if err != nil || port != 8080 {
		t.Errorf("GetInt = %d, %v", port, err)
	}
	debug, err := cfg.GetBool("server:debug")
	if err != nil || !debug {
		t.Errorf("GetBool = %v, %v", debug, err)
	}
}

func TestSourcePrecedence(t *testing.T) {
	builder := NewConfigurationBuilder()
	builder.AddInMemory(map[string]any{
		"db": map[string]any{"host": "first", "port": 5432},
	})
	builder.AddInMemory(map[string]any{
		"db": map[string]any{"host": "second"},
	})

	cfg, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// 后添加的源覆盖标量，未覆盖的键保留
	if got := cfg.Get("db:host"); got != "second" {
		t.Errorf("db:host = %q, want second", got)
	}
	if port, _ := cfg.GetInt("db:port"); port != 5432 {
		t.Errorf("db:port = %d, want 5432", port)
	}
}

func TestGetSection(t *testing.T) {
	builder := NewConfigurationBuilder()
	builder.AddInMemory(map[string]any{
		"redis": map[string]any{
			"default": map[string]any{"addr": "localhost:6379"},
		},
	})

	cfg, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	section := cfg.GetSection("redis:default")
	if got := section.Get("addr"); got != "localhost:6379" {
		t.Errorf("section addr = %q", got)
	}

	// 不存在的节返回空配置而不是 nil
	empty := cfg.GetSection("nope")
	if empty == nil {
		t.Fatal("GetSection should never return nil")
	}
	if got := empty.Get("anything"); got != "" {
		t.Errorf("empty section should return empty values, got %q", got)
	}
}

func TestBind(t *testing.T) {
	type ServerConfig struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}

	builder := NewConfigurationBuilder()
	builder.AddInMemory(map[string]any{
		"server": map[string]any{"host": "0.0.0.0", "port": 9090},
	})

	cfg, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var sc ServerConfig
	if err := cfg.Bind("server", &sc); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if sc.Host != "0.0.0.0" || sc.Port != 9090 {
		t.Errorf("Bind result: %+v", sc)
	}

	if err := cfg.Bind("missing", &sc); err == nil {
		t.Error("Bind on missing key should fail")
	}
}

func TestSectionHelper(t *testing.T) {
	type LimitConfig struct {
		Max int `json:"max"`
	}

	builder := NewConfigurationBuilder()
	builder.AddInMemory(map[string]any{
		"limits": map[string]any{"max": 42},
	})
	cfg, _ := builder.Build()

	lc, err := Section[LimitConfig](cfg, "limits")
	if err != nil {
		t.Fatalf("Section failed: %v", err)
	}
	if lc.Max != 42 {
		t.Errorf("Max = %d", lc.Max)
	}
}

func TestReloadableConfiguration(t *testing.T) {
	source := &InMemorySource{Data: map[string]any{
		"feature": map[string]any{"enabled": false},
	}}

	builder := NewConfigurationBuilder()
	builder.Add(source)

	cfg, err := builder.BuildReloadable()
	if err != nil {
		t.Fatalf("BuildReloadable failed: %v", err)
	}

	if enabled, _ := cfg.GetBool("feature:enabled"); enabled {
		t.Error("expected feature disabled initially")
	}

	var notified bool
	cfg.OnReload(func() { notified = true })

	// 修改源数据后重载
	source.Data["feature"] = map[string]any{"enabled": true}
	if err := cfg.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if enabled, _ := cfg.GetBool("feature:enabled"); !enabled {
		t.Error("expected feature enabled after reload")
	}
	if !notified {
		t.Error("OnReload callback not fired")
	}
}

func TestOptionsCacheFollowsReload(t *testing.T) {
	type Threshold struct {
		Limit int `json:"limit"`
	}

	source := &InMemorySource{Data: map[string]any{
		"threshold": map[string]any{"limit": 10},
	}}
	builder := NewConfigurationBuilder()
	builder.Add(source)
	cfg, _ := builder.BuildReloadable()

	cache := NewOptionsCache[Threshold](cfg, "threshold")
	if cache.Get().Limit != 10 {
		t.Errorf("initial limit = %d", cache.Get().Limit)
	}

	source.Data["threshold"] = map[string]any{"limit": 99}
	if err := cfg.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if cache.Get().Limit != 99 {
		t.Errorf("limit after reload = %d", cache.Get().Limit)
	}
}

func BenchmarkConfigGet(b *testing.B) {
	builder := NewConfigurationBuilder()
	builder.AddInMemory(map[string]any{
		"server": map[string]any{
			"host": "localhost",
			"port": 8080,
		},
	})
	config, _ := builder.BuildReloadable()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		config.Get("server:host")
	}
}
