package di_test

import (
	"strings"
	"testing"

	"github.com/gocrud/inject/di"
	"gopkg.in/yaml.v3"
)

type decodeTarget struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type decodeAlias interface{ Addr() string }

func (d *decodeTarget) Addr() string { return d.Host }

func newDecodeRegistries() (*di.DecoderRegistry, *di.TypeRegistry) {
	types := di.NewTypeRegistry()
	di.RegisterType[*decodeTarget](types, "decode-target")
	di.RegisterType[decodeAlias](types, "decode-alias")
	return di.NewDecoderRegistry(), types
}

// 多文档流：instance 与 alias 记录依次解码并可安装解析
func TestDecodeBindingsStream(t *testing.T) {
	decoders, types := newDecodeRegistries()
	stream := strings.NewReader(`
kind: instance
type: decode-target
singleton: true
value:
  host: localhost
  port: 6379
---
kind: instance
type: decode-target
name: backup
value:
  host: standby
---
kind: alias
type: decode-alias
target: decode-target
`)

	bindings, err := di.DecodeBindings(stream, decoders, types)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if len(bindings) != 3 {
		t.Fatalf("期望 3 条绑定，得到 %d", len(bindings))
	}

	injector := di.New()
	for _, b := range bindings {
		if err := injector.Install(b); err != nil {
			t.Fatalf("安装失败: %v", err)
		}
	}

	primary := di.MustResolve[*decodeTarget](injector)
	if primary.Host != "localhost" || primary.Port != 6379 {
		t.Errorf("instance 记录解码错误: %+v", primary)
	}
	backup := di.MustResolve[*decodeTarget](injector, di.Named("backup"))
	if backup.Host != "standby" {
		t.Errorf("带名字的 instance 记录解码错误: %+v", backup)
	}

	// alias 在同一上下文中解析目标，单例目标保持同一引用
	aliased := di.MustResolve[decodeAlias](injector)
	if aliased != decodeAlias(primary) {
		t.Error("alias 应解析到目标绑定的同一实例")
	}
}

// 未注册的 kind：整个流失败，不返回部分结果
func TestDecodeBindingsUnknownKind(t *testing.T) {
	decoders, types := newDecodeRegistries()
	stream := strings.NewReader(`
kind: instance
type: decode-target
value:
  host: ok
---
kind: mystery
type: decode-target
`)

	bindings, err := di.DecodeBindings(stream, decoders, types)
	if err == nil {
		t.Fatal("未注册的 kind 应使解码失败")
	}
	if bindings != nil {
		t.Error("失败时不应返回部分结果")
	}
	if !strings.Contains(err.Error(), "mystery") {
		t.Errorf("错误应点名未知 kind: %v", err)
	}
}

// 未登记的类型名在解码期失败
func TestDecodeBindingsUnknownType(t *testing.T) {
	decoders, types := newDecodeRegistries()
	stream := strings.NewReader(`
kind: instance
type: never-registered
value: {}
`)

	if _, err := di.DecodeBindings(stream, decoders, types); err == nil {
		t.Fatal("未登记的类型名应使解码失败")
	}
}

// 自定义记录解码器经注册后参与分发
func TestDecodeBindingsCustomDecoder(t *testing.T) {
	decoders, types := newDecodeRegistries()
	decoders.Register("fixed", func(node *yaml.Node, _ *di.TypeRegistry) (*di.UninstalledBinding, error) {
		return di.Instance("fixed-value", di.KeyFor[string]()), nil
	})

	bindings, err := di.DecodeBindings(strings.NewReader("kind: fixed\n"), decoders, types)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}

	injector := di.New()
	for _, b := range bindings {
		injector.MustInstall(b)
	}
	if got := di.MustResolve[string](injector); got != "fixed-value" {
		t.Errorf("自定义解码器产出的绑定解析错误: %q", got)
	}
}
