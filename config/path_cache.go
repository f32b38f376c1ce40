package config

import (
	"strings"
	"sync"
)

// PathCache 缓存配置路径的分段结果
// 同一路径在热路径上反复查询，分割一次后复用
type PathCache struct {
	cache sync.Map
}

// GetPathSegments 返回路径的分段形式
// ":" 与 "." 都是合法分隔符（"db:master.dsn" 等价于 "db.master.dsn"）
func (c *PathCache) GetPathSegments(path string) []string {
	if cached, ok := c.cache.Load(path); ok {
		return cached.([]string)
	}

	segments := strings.Split(strings.ReplaceAll(path, ":", "."), ".")
	actual, _ := c.cache.LoadOrStore(path, segments)
	return actual.([]string)
}

// globalPathCache 进程级路径缓存
var globalPathCache = &PathCache{}
