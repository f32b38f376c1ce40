package di

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Key 是绑定的标识：底层类型加上可选的限定符集合。
// Key 是不可变的可比较值，直接用作 map 键。
type Key struct {
	typ reflect.Type

	// qual 是限定符集合的规范化指纹。
	// 空字符串表示无限定符。相同类型、不同限定符的 Key 互不相同。
	qual string
}

// KeyOf 根据类型和可选的限定符构造 Key。
// 类型会先做规范化处理（见 normalizeType）。
func KeyOf(typ reflect.Type, quals ...Qualifier) Key {
	return Key{typ: normalizeType(typ), qual: fingerprintAll(quals)}
}

// KeyFor 是 KeyOf 的泛型便捷形式。
//
// 使用示例: di.KeyFor[UserService](di.Named("primary"))
func KeyFor[T any](quals ...Qualifier) Key {
	return KeyOf(TypeOf[T](), quals...)
}

// Type 返回 Key 的底层类型（已规范化）。
func (k Key) Type() reflect.Type {
	return k.typ
}

// Qualified 报告 Key 是否携带限定符。
func (k Key) Qualified() bool {
	return k.qual != ""
}

// IsZero 报告 Key 是否为零值（未初始化）。
func (k Key) IsZero() bool {
	return k.typ == nil
}

// String 返回 Key 的可读表示，用于错误信息和日志。
func (k Key) String() string {
	if k.typ == nil {
		return "<zero key>"
	}
	if k.qual == "" {
		return k.typ.String()
	}
	return k.typ.String() + "[" + k.qual + "]"
}

// Qualifier 是附加在 Key 上的匹配约束。
//
// 两种形态：
//   - 标记限定符：仅按标记类型匹配（标记不携带数据时使用）
//   - 取值限定符：按标记类型和具体值精确匹配（如 Named("x")）
//
// 两个 Key 相等当且仅当类型相等且限定符集合相等。
type Qualifier struct {
	tag   reflect.Type
	value string
	exact bool
}

// namedTag 是内置的命名限定符标记类型。
type namedTag struct{}

// Named 构造一个按名称精确匹配的限定符。
// Named("a") 与 Named("b") 产生互不冲突的绑定目标。
func Named(name string) Qualifier {
	return Qualifier{tag: reflect.TypeOf(namedTag{}), value: name, exact: true}
}

// Marker 构造一个仅按标记类型匹配的限定符。
// 适用于不携带任何数据的标记类型：任何 T 实例都视为同一限定符。
func Marker[T any]() Qualifier {
	return Qualifier{tag: TypeOf[T]()}
}

// Tagged 构造一个按标记值精确匹配的限定符。
// 携带数据的标记必须逐值比较，否则不同取值会碰撞到同一个绑定。
func Tagged[T any](value T) Qualifier {
	return Qualifier{
		tag:   TypeOf[T](),
		value: fmt.Sprintf("%#v", value),
		exact: true,
	}
}

// fingerprint 返回限定符的规范化指纹。
func (q Qualifier) fingerprint() string {
	if q.tag == nil {
		return ""
	}
	if !q.exact {
		return q.tag.String()
	}
	return q.tag.String() + "=" + q.value
}

// fingerprintAll 将限定符集合折叠为顺序无关的规范化指纹。
func fingerprintAll(quals []Qualifier) string {
	switch len(quals) {
	case 0:
		return ""
	case 1:
		return quals[0].fingerprint()
	}
	parts := make([]string, 0, len(quals))
	for _, q := range quals {
		if fp := q.fingerprint(); fp != "" {
			parts = append(parts, fp)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）。
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

var (
	kindTableOnce sync.Once
	kindTable     map[reflect.Kind]reflect.Type
)

// basicKindTable 返回进程级的基础类型规范化表。
// 延迟初始化一次，此后只读，不依赖初始化后的任何修改。
//
// 表中每个基础 Kind 映射到其预声明类型，使 byte/uint8、rune/int32
// 这类别名请求落到同一个绑定条目，同时为即时构造基础值提供零值模板。
func basicKindTable() map[reflect.Kind]reflect.Type {
	kindTableOnce.Do(func() {
		kindTable = map[reflect.Kind]reflect.Type{
			reflect.Bool:       reflect.TypeOf(false),
			reflect.Int:        reflect.TypeOf(int(0)),
			reflect.Int8:       reflect.TypeOf(int8(0)),
			reflect.Int16:      reflect.TypeOf(int16(0)),
			reflect.Int32:      reflect.TypeOf(int32(0)),
			reflect.Int64:      reflect.TypeOf(int64(0)),
			reflect.Uint:       reflect.TypeOf(uint(0)),
			reflect.Uint8:      reflect.TypeOf(uint8(0)),
			reflect.Uint16:     reflect.TypeOf(uint16(0)),
			reflect.Uint32:     reflect.TypeOf(uint32(0)),
			reflect.Uint64:     reflect.TypeOf(uint64(0)),
			reflect.Float32:    reflect.TypeOf(float32(0)),
			reflect.Float64:    reflect.TypeOf(float64(0)),
			reflect.Complex64:  reflect.TypeOf(complex64(0)),
			reflect.Complex128: reflect.TypeOf(complex128(0)),
			reflect.String:     reflect.TypeOf(""),
		}
	})
	return kindTable
}

// normalizeType 将类型折叠为查找用的规范形式：
//   - 指向接口的指针解包为接口本身（*SomeIface 与 SomeIface 等价）
//   - 预声明基础类型经 Kind 表归一（byte 与 uint8、rune 与 int32 命中同一条目）
//
// 自定义命名类型（type Port int 这类）保持原样，不与底层基础类型合并。
func normalizeType(typ reflect.Type) reflect.Type {
	if typ == nil {
		return nil
	}
	if typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Interface {
		typ = typ.Elem()
	}
	if typ.Name() != "" && typ.PkgPath() == "" {
		if canonical, ok := basicKindTable()[typ.Kind()]; ok {
			return canonical
		}
	}
	return typ
}
