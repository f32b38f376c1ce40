package core

import (
	"reflect"
	"sync"
)

// FeatureCollection 按动态类型存放构建期特性
// Option 在装配阶段放入 Builder/Host 等对象，测试与后续 Option 按类型取回
type FeatureCollection struct {
	features sync.Map
}

// Set 注册一个特性，同类型后写覆盖先写
func (fc *FeatureCollection) Set(feature any) {
	fc.features.Store(reflect.TypeOf(feature), feature)
}

// Get 按类型取出特性
func (fc *FeatureCollection) Get(typ reflect.Type) (any, bool) {
	return fc.features.Load(typ)
}

// GetFeature 按类型 T 取出特性，没有则返回零值
// T 为接口时用 (*T)(nil).Elem() 取接口自身的类型，而不是 nil 的动态类型
func GetFeature[T any](rt *Runtime) T {
	targetType := reflect.TypeOf((*T)(nil)).Elem()
	if val, ok := rt.Features.Get(targetType); ok {
		return val.(T)
	}
	var zero T
	return zero
}
