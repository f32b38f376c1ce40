package di

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// InjectTag 是反射发现注入字段使用的结构体标签。
// 格式: `inject:"name,optional"`，name 为空表示无限定符。
const InjectTag = "inject"

// injectMethodPrefix 是反射发现注入方法使用的命名前缀。
// 反射发现的方法优先级一律为 0，Go 反射的方法序（字母序）作为稳定的次序。
const injectMethodPrefix = "Inject"

// Members 是一个类型的显式注入点声明。
// 核心把成员查找视为外部协作者：显式声明优先，缺省时回退到反射发现。
type Members struct {
	// Constructor 是显式标注的注入构造函数。
	// 同一类型声明多个构造函数是配置错误（AmbiguousConstructorError）。
	Constructor any

	// AllFields 声明该类型按"全部导出字段即全部组件"的方式构造，
	// 对应记录式类型的规范构造。与 Constructor 互斥。
	AllFields bool

	// Fields 是需要注入的字段及其限定符。
	Fields []FieldSpec

	// Methods 是需要调用的注入方法及其优先级，数值小的先执行。
	Methods []MethodSpec
}

// FieldSpec 声明一个注入字段。
type FieldSpec struct {
	Name       string
	Qualifiers []Qualifier
	Optional   bool
}

// MethodSpec 声明一个注入方法。
type MethodSpec struct {
	Name     string
	Priority int
	// Params 显式给出参数 Key；为空时从方法签名推断（全部无限定符）。
	Params []Key
}

// fieldInjection 是编译后的字段注入点。
type fieldInjection struct {
	index    []int
	name     string
	key      Key
	optional bool
}

// methodInjection 是编译后的方法注入点。
type methodInjection struct {
	name     string
	priority int
	order    int // 声明序，优先级相同时的稳定次序
	method   reflect.Method
	params   []Key
}

// classification 是类型的完整注入点描述。
type classification struct {
	typ       reflect.Type
	ctor      *callable
	allFields bool
	fields    []fieldInjection
	methods   []methodInjection
}

// memberClassifier 维护类型到注入点的映射。
// 显式注册的声明覆盖反射发现；编译结果缓存，稳态只读。
type memberClassifier struct {
	mu       sync.RWMutex
	declared map[reflect.Type][]Members
	compiled map[reflect.Type]*classification
}

func newMemberClassifier() *memberClassifier {
	return &memberClassifier{
		declared: make(map[reflect.Type][]Members),
		compiled: make(map[reflect.Type]*classification),
	}
}

// declare 登记类型的显式注入点声明。
func (m *memberClassifier) declare(typ reflect.Type, members Members) {
	typ = normalizeType(typ)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declared[typ] = append(m.declared[typ], members)
	delete(m.compiled, typ)
}

// classify 返回类型的注入点描述。
// 先查显式声明，再回退反射发现；两者都会沿内嵌结构体链收集字段。
func (m *memberClassifier) classify(typ reflect.Type) (*classification, error) {
	typ = normalizeType(typ)

	m.mu.RLock()
	if c, ok := m.compiled[typ]; ok {
		m.mu.RUnlock()
		return c, nil
	}
	declared := m.declared[typ]
	m.mu.RUnlock()

	c, err := compileClassification(typ, declared)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.compiled[typ] = c
	m.mu.Unlock()
	return c, nil
}

func compileClassification(typ reflect.Type, declared []Members) (*classification, error) {
	c := &classification{typ: typ}

	structType, ok := pointeeStruct(typ)

	// 1. 显式声明
	order := 0
	for _, members := range declared {
		if members.Constructor != nil {
			if c.ctor != nil || members.AllFields {
				return nil, &AmbiguousConstructorError{Type: typ.String()}
			}
			call, err := newCallable(members.Constructor)
			if err != nil {
				return nil, err
			}
			c.ctor = call
		}
		if members.AllFields {
			if c.ctor != nil {
				return nil, &AmbiguousConstructorError{Type: typ.String()}
			}
			c.allFields = true
		}
		for _, spec := range members.Fields {
			if !ok {
				return nil, fmt.Errorf("di: 类型 %s 不是结构体指针，无法声明字段注入 %s", typ, spec.Name)
			}
			field, found := structType.FieldByName(spec.Name)
			if !found {
				return nil, fmt.Errorf("di: 类型 %s 没有字段 %s", typ, spec.Name)
			}
			c.fields = append(c.fields, fieldInjection{
				index:    field.Index,
				name:     field.Name,
				key:      KeyOf(field.Type, spec.Qualifiers...),
				optional: spec.Optional,
			})
		}
		for _, spec := range members.Methods {
			method, found := typ.MethodByName(spec.Name)
			if !found {
				return nil, fmt.Errorf("di: 类型 %s 没有方法 %s", typ, spec.Name)
			}
			params := spec.Params
			if params == nil {
				params = methodParamKeys(method)
			} else if len(params) != method.Type.NumIn()-1 {
				return nil, fmt.Errorf("di: 方法 %s.%s 参数 Key 数量不匹配", typ, spec.Name)
			}
			c.methods = append(c.methods, methodInjection{
				name:     spec.Name,
				priority: spec.Priority,
				order:    order,
				method:   method,
				params:   params,
			})
			order++
		}
	}

	// 2. 反射发现（与显式声明叠加，重复字段以显式声明为准）
	if ok {
		discoverTaggedFields(structType, nil, c)
	}
	if len(declared) == 0 {
		discoverInjectMethods(typ, c, &order)
	}

	sortMethodInjections(c.methods)
	return c, nil
}

// pointeeStruct 返回指针指向的结构体类型。
func pointeeStruct(typ reflect.Type) (reflect.Type, bool) {
	if typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Struct {
		return typ.Elem(), true
	}
	return nil, false
}

// discoverTaggedFields 沿内嵌结构体链收集带 inject 标签的字段。
func discoverTaggedFields(structType reflect.Type, prefix []int, c *classification) {
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			discoverTaggedFields(field.Type, index, c)
			continue
		}

		tagValue, hasTag := field.Tag.Lookup(InjectTag)
		if !hasTag || !field.IsExported() {
			continue
		}
		if c.hasField(field.Name) {
			continue
		}

		name, optional := parseInjectTag(tagValue)
		var quals []Qualifier
		if name != "" {
			quals = []Qualifier{Named(name)}
		}
		c.fields = append(c.fields, fieldInjection{
			index:    index,
			name:     field.Name,
			key:      KeyOf(field.Type, quals...),
			optional: optional,
		})
	}
}

func (c *classification) hasField(name string) bool {
	for _, f := range c.fields {
		if f.name == name {
			return true
		}
	}
	return false
}

// parseInjectTag 解析 "name,option" 形式的标签。
// "?" 与 "optional" 都表示可选依赖。
func parseInjectTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	if name == "?" || name == "optional" {
		name = ""
		optional = true
	}
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "optional" || part == "?" {
			optional = true
		}
	}
	return name, optional
}

// discoverInjectMethods 收集 Inject 前缀的方法作为注入方法。
// Go 反射按字母序枚举方法，天然提供确定性的次序。
func discoverInjectMethods(typ reflect.Type, c *classification, order *int) {
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if !strings.HasPrefix(method.Name, injectMethodPrefix) || method.Name == injectMethodPrefix {
			continue
		}
		c.methods = append(c.methods, methodInjection{
			name:     method.Name,
			priority: 0,
			order:    *order,
			method:   method,
			params:   methodParamKeys(method),
		})
		*order++
	}
}

func methodParamKeys(method reflect.Method) []Key {
	n := method.Type.NumIn() - 1 // 跳过接收者
	params := make([]Key, n)
	for i := 0; i < n; i++ {
		params[i] = KeyOf(method.Type.In(i + 1))
	}
	return params
}

// sortMethodInjections 按优先级升序排序，优先级相同时保持声明序。
func sortMethodInjections(methods []methodInjection) {
	sort.SliceStable(methods, func(i, j int) bool {
		if methods[i].priority != methods[j].priority {
			return methods[i].priority < methods[j].priority
		}
		return methods[i].order < methods[j].order
	})
}

// injectMembers 对已构造的实例执行成员注入。
// 字段先注入，随后按优先级调用注入方法；每个依赖的解析都重新进入
// 同一个注入上下文，兄弟成员之间的交叉引用经过同样的循环感知机制。
func injectMembers(ctx *InjectionContext, instance any) error {
	if instance == nil {
		return nil
	}
	typ := reflect.TypeOf(instance)
	c, err := ctx.injector.classifier.classify(typ)
	if err != nil {
		return err
	}
	if len(c.fields) == 0 && len(c.methods) == 0 {
		return nil
	}

	val := reflect.ValueOf(instance)

	if len(c.fields) > 0 && val.Kind() == reflect.Pointer && !val.IsNil() {
		elem := val.Elem()
		for _, f := range c.fields {
			dep, err := ctx.Resolve(f.key)
			if err != nil {
				if f.optional {
					continue
				}
				return fmt.Errorf("di: 注入字段 %s.%s 失败: %w", typ, f.name, err)
			}
			target := elem.FieldByIndex(f.index)
			target.Set(argValue(dep, target.Type()))
		}
	}

	for _, m := range c.methods {
		args := make([]reflect.Value, len(m.params)+1)
		args[0] = val
		for i, paramKey := range m.params {
			dep, err := ctx.Resolve(paramKey)
			if err != nil {
				return fmt.Errorf("di: 注入方法 %s.%s 失败: %w", typ, m.name, err)
			}
			args[i+1] = argValue(dep, m.method.Type.In(i+1))
		}
		m.method.Func.Call(args)
	}
	return nil
}
