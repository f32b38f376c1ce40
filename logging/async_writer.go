package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncWriter 异步日志写入器
// 调用方只入队，格式化与 I/O 在单独的消费协程里完成
type AsyncWriter struct {
	writer     io.Writer
	formatter  Formatter
	entryCh    chan *LogEntry
	wg         sync.WaitGroup
	closeOnce  sync.Once
	errHandler func(error)
}

// NewAsyncWriter 创建异步写入器并启动消费协程
func NewAsyncWriter(writer io.Writer, formatter Formatter, bufferSize int) *AsyncWriter {
	w := &AsyncWriter{
		writer:    writer,
		formatter: formatter,
		entryCh:   make(chan *LogEntry, bufferSize),
	}

	w.wg.Add(1)
	go w.drain()

	return w
}

// WriteLog 入队一条日志
// 队列满时阻塞等待而不是丢弃
func (w *AsyncWriter) WriteLog(entry *LogEntry) {
	w.entryCh <- entry
}

// Close 停止接收并把队列冲干净后返回
func (w *AsyncWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.entryCh)
	})
	w.wg.Wait()
	return nil
}

// SetErrorHandler 设置格式化/写入失败时的回调，默认打到 stderr
func (w *AsyncWriter) SetErrorHandler(handler func(error)) {
	w.errHandler = handler
}

func (w *AsyncWriter) drain() {
	defer w.wg.Done()
	for entry := range w.entryCh {
		w.writeOne(entry)
	}
}

func (w *AsyncWriter) writeOne(entry *LogEntry) {
	data, err := w.formatter.Format(entry)
	if err != nil {
		w.reportError(fmt.Errorf("format error: %w", err))
		return
	}

	if _, err := w.writer.Write(data); err != nil {
		w.reportError(fmt.Errorf("write error: %w", err))
	}

	// TextFormatter 自带换行，JSON 编码没有，缺了就补一个
	if len(data) > 0 && data[len(data)-1] != '\n' {
		w.writer.Write([]byte{'\n'})
	}
}

func (w *AsyncWriter) reportError(err error) {
	if w.errHandler != nil {
		w.errHandler(err)
		return
	}
	fmt.Fprintf(os.Stderr, "logging: AsyncWriter %v\n", err)
}
