package di

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"
)

// 绑定文件是离线编译协作者产出的工件：一串 YAML 文档，
// 每条记录以 kind 标签开头，按标签分发到对应的记录解码器。
// 核心只拥有 decode 契约本身；注解处理器注册自己的解码器。

// TypeRegistry 维护类型名到 Go 类型的映射。
// 绑定文件里的类型引用经由它落到真实类型上。
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]reflect.Type)}
}

// RegisterType 以 name 登记类型 T。
func RegisterType[T any](r *TypeRegistry, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = TypeOf[T]()
}

// Lookup 按名称查找类型。
func (r *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.types[name]
	return typ, ok
}

// RecordDecoder 把一条记录解码为未安装的绑定。
type RecordDecoder func(node *yaml.Node, types *TypeRegistry) (*UninstalledBinding, error)

// DecoderRegistry 维护记录 kind 到解码器的映射，内置 instance 和 alias。
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[string]RecordDecoder
}

func NewDecoderRegistry() *DecoderRegistry {
	r := &DecoderRegistry{decoders: make(map[string]RecordDecoder)}
	r.Register("instance", decodeInstanceRecord)
	r.Register("alias", decodeAliasRecord)
	return r
}

// Register 登记 kind 对应的解码器，重复登记覆盖。
func (r *DecoderRegistry) Register(kind string, decoder RecordDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[kind] = decoder
}

func (r *DecoderRegistry) lookup(kind string) (RecordDecoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[kind]
	return d, ok
}

// recordHeader 是每条记录的公共前导字段。
type recordHeader struct {
	Kind string `yaml:"kind"`
}

// DecodeBindings 从字节流解码全部绑定记录。
// 任何一条记录无法解码都使整个流失败，不返回部分结果。
func DecodeBindings(reader io.Reader, decoders *DecoderRegistry, types *TypeRegistry) ([]*UninstalledBinding, error) {
	dec := yaml.NewDecoder(reader)
	var bindings []*UninstalledBinding

	for recordIndex := 0; ; recordIndex++ {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				return bindings, nil
			}
			return nil, fmt.Errorf("di: 解码绑定记录 %d 失败: %w", recordIndex, err)
		}

		var header recordHeader
		if err := node.Decode(&header); err != nil {
			return nil, fmt.Errorf("di: 绑定记录 %d 缺少 kind 标签: %w", recordIndex, err)
		}
		decoder, ok := decoders.lookup(header.Kind)
		if !ok {
			return nil, fmt.Errorf("di: 绑定记录 %d 的 kind %q 没有注册解码器", recordIndex, header.Kind)
		}

		binding, err := decoder(&node, types)
		if err != nil {
			return nil, fmt.Errorf("di: 绑定记录 %d (kind=%s) 解码失败: %w", recordIndex, header.Kind, err)
		}
		bindings = append(bindings, binding)
	}
}

// instanceRecord 是 instance 记录的结构：
//
//	kind: instance
//	type: <registered type name>
//	name: <optional Named qualifier>
//	singleton: <optional>
//	value: <decoded into a fresh instance of the type>
type instanceRecord struct {
	Type      string    `yaml:"type"`
	Name      string    `yaml:"name"`
	Singleton bool      `yaml:"singleton"`
	Value     yaml.Node `yaml:"value"`
}

func decodeInstanceRecord(node *yaml.Node, types *TypeRegistry) (*UninstalledBinding, error) {
	var record instanceRecord
	if err := node.Decode(&record); err != nil {
		return nil, err
	}
	typ, ok := types.Lookup(record.Type)
	if !ok {
		return nil, fmt.Errorf("类型 %q 未注册", record.Type)
	}

	target := typ
	isPtr := typ.Kind() == reflect.Pointer
	if isPtr {
		target = typ.Elem()
	}
	holder := reflect.New(target)
	if record.Value.Kind != 0 {
		if err := record.Value.Decode(holder.Interface()); err != nil {
			return nil, fmt.Errorf("解码 %q 的值失败: %w", record.Type, err)
		}
	}

	var value any
	if isPtr {
		value = holder.Interface()
	} else {
		value = holder.Elem().Interface()
	}

	var quals []Qualifier
	if record.Name != "" {
		quals = []Qualifier{Named(record.Name)}
	}
	binding := Instance(value, KeyOf(typ, quals...))
	if record.Singleton {
		binding = binding.InSingleton()
	}
	return binding, nil
}

// aliasRecord 是 alias 记录的结构：请求 type 时实际解析 target。
//
//	kind: alias
//	type: <registered type name>
//	name: <optional Named qualifier>
//	target: <registered type name>
//	targetName: <optional Named qualifier on the target>
type aliasRecord struct {
	Type       string `yaml:"type"`
	Name       string `yaml:"name"`
	Target     string `yaml:"target"`
	TargetName string `yaml:"targetName"`
}

func decodeAliasRecord(node *yaml.Node, types *TypeRegistry) (*UninstalledBinding, error) {
	var record aliasRecord
	if err := node.Decode(&record); err != nil {
		return nil, err
	}
	typ, ok := types.Lookup(record.Type)
	if !ok {
		return nil, fmt.Errorf("类型 %q 未注册", record.Type)
	}
	targetType, ok := types.Lookup(record.Target)
	if !ok {
		return nil, fmt.Errorf("目标类型 %q 未注册", record.Target)
	}

	var quals, targetQuals []Qualifier
	if record.Name != "" {
		quals = []Qualifier{Named(record.Name)}
	}
	if record.TargetName != "" {
		targetQuals = []Qualifier{Named(record.TargetName)}
	}

	return &UninstalledBinding{
		keys:     []Key{KeyOf(typ, quals...)},
		strategy: &aliasStrategy{target: KeyOf(targetType, targetQuals...)},
	}, nil
}

// aliasStrategy 把构造委托给另一个 Key，在同一上下文中解析。
type aliasStrategy struct {
	target Key
}

func (s *aliasStrategy) construct(ctx *InjectionContext) (any, error) {
	return ctx.Resolve(s.target)
}

func (s *aliasStrategy) describe() string { return "alias" }
