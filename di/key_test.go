package di

import (
	"reflect"
	"testing"
)

type keyTestIface interface{ M() }

// 指向接口的指针解包为接口本身
func TestKeyNormalizesPointerToInterface(t *testing.T) {
	direct := KeyOf(reflect.TypeOf((*keyTestIface)(nil)).Elem())
	viaPtr := KeyOf(reflect.TypeOf((*keyTestIface)(nil)))
	if direct != viaPtr {
		t.Errorf("*iface 与 iface 应落到同一 Key: %v vs %v", viaPtr, direct)
	}
	if direct.Type().Kind() != reflect.Interface {
		t.Errorf("规范化后的类型应是接口，得到 %v", direct.Type().Kind())
	}
}

// 预声明基础类型的别名命中同一 Key（byte/uint8、rune/int32）
func TestKeyNormalizesBasicAliases(t *testing.T) {
	if KeyOf(reflect.TypeOf(byte(0))) != KeyOf(reflect.TypeOf(uint8(0))) {
		t.Error("byte 与 uint8 应等价")
	}
	if KeyOf(reflect.TypeOf(rune(0))) != KeyOf(reflect.TypeOf(int32(0))) {
		t.Error("rune 与 int32 应等价")
	}
}

// 自定义命名类型不与底层基础类型合并
func TestKeyKeepsNamedBasicTypesDistinct(t *testing.T) {
	type Port int
	if KeyOf(reflect.TypeOf(Port(0))) == KeyOf(reflect.TypeOf(int(0))) {
		t.Error("type Port int 不应与 int 合并")
	}
}

// 限定符相等性：同名等价、异名区分、顺序无关
func TestQualifierEquality(t *testing.T) {
	if KeyFor[string](Named("x")) != KeyFor[string](Named("x")) {
		t.Error("相同 Named 限定符的 Key 应相等")
	}
	if KeyFor[string](Named("x")) == KeyFor[string](Named("y")) {
		t.Error("不同 Named 限定符的 Key 不应相等")
	}
	if KeyFor[string](Named("x")) == KeyFor[string]() {
		t.Error("有无限定符的 Key 不应相等")
	}

	type marker struct{}
	a := KeyFor[string](Named("x"), Marker[marker]())
	b := KeyFor[string](Marker[marker](), Named("x"))
	if a != b {
		t.Error("限定符集合的相等性应与顺序无关")
	}
}

// 标记限定符按类型匹配；携带数据的限定符按值匹配
func TestMarkerAndTaggedQualifiers(t *testing.T) {
	type flavor struct{ Name string }

	if KeyFor[int](Tagged(flavor{Name: "a"})) == KeyFor[int](Tagged(flavor{Name: "b"})) {
		t.Error("不同取值的 Tagged 限定符不应碰撞")
	}
	if KeyFor[int](Tagged(flavor{Name: "a"})) != KeyFor[int](Tagged(flavor{Name: "a"})) {
		t.Error("相同取值的 Tagged 限定符应相等")
	}

	type marker struct{}
	if KeyFor[int](Marker[marker]()) != KeyFor[int](Marker[marker]()) {
		t.Error("同一标记类型的 Marker 限定符应相等")
	}
}

// 泛型的参数化类型各自独立成 Key
func TestParameterizedTypesAreDistinct(t *testing.T) {
	listOfString := KeyFor[[]string]()
	listOfInt := KeyFor[[]int]()
	nested := KeyFor[[][]string]()

	if listOfString == listOfInt || listOfString == nested {
		t.Error("不同参数化类型不应共享 Key")
	}
	if KeyFor[[]string]() != listOfString {
		t.Error("相同参数化类型应共享 Key")
	}

	if KeyFor[[4]byte]() == KeyFor[[]byte]() {
		t.Error("数组与切片类型不应共享 Key")
	}
}

// 基础类型绑定经规范化互通
func TestBasicTypeBindingEquivalence(t *testing.T) {
	injector := New()
	RegisterInstance[int](injector, 42)

	v, err := injector.Instance(KeyOf(reflect.TypeOf(int(0))))
	if err != nil || v.(int) != 42 {
		t.Errorf("基础类型请求应命中绑定: %v %v", v, err)
	}
}
