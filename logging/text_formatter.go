package logging

import (
	"bytes"
	"fmt"
)

// TextFormatter 文本格式化器
// 输出形如 "2025-06-01 12:00:00 INFO [http] request done {status=200}"
type TextFormatter struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
}

// NewTextFormatter 创建文本格式化器
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
	}
}

// Format 格式化日志
// 拼接在池化 buffer 中完成，返回前拷贝一份，buffer 立即归还
func (f *TextFormatter) Format(entry *LogEntry) ([]byte, error) {
	buffer := GlobalBufferPool.Get()
	defer GlobalBufferPool.Put(buffer)

	if f.IncludeTimestamp {
		buffer.WriteString(entry.Time.Format(f.TimestampFormat))
		buffer.WriteByte(' ')
	}

	level := entry.Level.String()
	if f.ColorOutput {
		level = colorize(entry.Level, level)
	}
	buffer.WriteString(level)

	if entry.Category != "" {
		buffer.WriteString(" [")
		buffer.WriteString(entry.Category)
		buffer.WriteByte(']')
	}

	buffer.WriteByte(' ')
	buffer.WriteString(entry.Message)

	appendFields(buffer, entry.Fields)
	buffer.WriteByte('\n')

	return bytes.Clone(buffer.Bytes()), nil
}

func appendFields(buffer *bytes.Buffer, fields []Field) {
	if len(fields) == 0 {
		return
	}
	buffer.WriteString(" {")
	for i, field := range fields {
		if i > 0 {
			buffer.WriteString(", ")
		}
		buffer.WriteString(field.Key)
		buffer.WriteByte('=')
		fmt.Fprintf(buffer, "%v", field.Value)
	}
	buffer.WriteByte('}')
}
