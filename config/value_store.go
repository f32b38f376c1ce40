package config

import (
	"sync/atomic"
)

// ValueStore 持有当前配置快照，读路径完全无锁
// Reload 通过整体替换发布新快照，读取方永远看到一致的数据
type ValueStore struct {
	data atomic.Pointer[map[string]any]
}

// NewValueStore 创建空的 ValueStore
func NewValueStore() *ValueStore {
	s := &ValueStore{}
	empty := map[string]any{}
	s.data.Store(&empty)
	return s
}

// Load 返回当前快照
// 返回的 map 被视为只读，调用方不得修改
func (s *ValueStore) Load() map[string]any {
	return *s.data.Load()
}

// Store 原子发布新快照
func (s *ValueStore) Store(data map[string]any) {
	s.data.Store(&data)
}
