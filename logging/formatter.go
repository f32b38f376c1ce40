package logging

import (
	"time"
)

// Formatter 把日志条目编码为输出字节
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// LogEntry 一条待输出的日志
type LogEntry struct {
	Time     time.Time
	Level    LogLevel
	Category string
	Message  string
	Fields   []Field
}

// fieldMap 把字段列表压成 map，后写的同名字段覆盖先写的
func (e *LogEntry) fieldMap() map[string]any {
	if len(e.Fields) == 0 {
		return nil
	}
	m := make(map[string]any, len(e.Fields))
	for _, field := range e.Fields {
		m[field.Key] = field.Value
	}
	return m
}
