package logging

import (
	"bytes"
	"sync"
)

// 超过该容量的 buffer 不回池，避免个别超长日志把池撑大
const maxPooledBufferSize = 64 * 1024

// BufferPool 字节缓冲池，格式化热路径复用 buffer 减少分配
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool 创建新的缓冲池
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return new(bytes.Buffer)
			},
		},
	}
}

// Get 获取一个空 buffer
func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put 归还 buffer
func (p *BufferPool) Put(b *bytes.Buffer) {
	if b.Cap() > maxPooledBufferSize {
		return
	}
	b.Reset()
	p.pool.Put(b)
}

// GlobalBufferPool 进程级缓冲池
var GlobalBufferPool = NewBufferPool()
