package di

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// ContextCell 是"当前注入上下文"的抽象存储单元。
//
// 解析算法是同步可重入的：每条逻辑调用链看到自己的上下文，
// 互不泄漏。默认实现按 goroutine 隔离；宿主若有自己的结构化
// 并发调度，可在注入器上替换为对应的传播机制。
type ContextCell interface {
	// Enter 把 ctx 设为当前上下文，返回的函数恢复先前的上下文。
	Enter(ctx *InjectionContext) (exit func())
	// Current 返回当前调用链的上下文，没有则返回 nil。
	Current() *InjectionContext
}

// goroutineCell 是默认的 ContextCell：按 goroutine ID 隔离。
// 每个 goroutine 维护一个上下文栈，支持同一 goroutine 上的嵌套进入。
type goroutineCell struct {
	mu    sync.RWMutex
	cells map[uint64][]*InjectionContext
}

func newGoroutineCell() *goroutineCell {
	return &goroutineCell{cells: make(map[uint64][]*InjectionContext)}
}

func (g *goroutineCell) Enter(ctx *InjectionContext) func() {
	gid := goroutineID()
	g.mu.Lock()
	g.cells[gid] = append(g.cells[gid], ctx)
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		stack := g.cells[gid]
		if n := len(stack); n > 0 {
			stack = stack[:n-1]
		}
		if len(stack) == 0 {
			delete(g.cells, gid)
		} else {
			g.cells[gid] = stack
		}
		g.mu.Unlock()
	}
}

func (g *goroutineCell) Current() *InjectionContext {
	gid := goroutineID()
	g.mu.RLock()
	defer g.mu.RUnlock()
	stack := g.cells[gid]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

var gidPrefix = []byte("goroutine ")

// goroutineID 从 runtime.Stack 的首行解析当前 goroutine ID。
// 解析结果只用作 map 键，不依赖其他运行时内部约定。
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, gidPrefix)
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}
