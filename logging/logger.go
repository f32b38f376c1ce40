package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel 日志级别
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	if l < LogLevelTrace || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Field 日志字段
type Field struct {
	Key   string
	Value any
}

// Logger 日志接口（类似于 .NET Core ILogger）
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	WithCategory(category string) Logger
}

// LoggerFactory 日志工厂接口
type LoggerFactory interface {
	CreateLogger(category string) Logger
	AddProvider(provider LoggerProvider)
	SetMinimumLevel(level LogLevel)
}

// LoggerProvider 日志提供者接口
type LoggerProvider interface {
	CreateLogger(category string) Logger
	SetMinimumLevel(level LogLevel)
}

// mergeFields 合并基础字段与调用方字段，总是返回新切片避免共享底层数组
func mergeFields(base, extra []Field) []Field {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make([]Field, 0, len(base)+len(extra))
	merged = append(merged, base...)
	merged = append(merged, extra...)
	return merged
}

// loggerFactory 日志工厂实现
type loggerFactory struct {
	providers    []LoggerProvider
	minimumLevel LogLevel
	mu           sync.RWMutex
}

func (f *loggerFactory) CreateLogger(category string) Logger {
	f.mu.RLock()
	defer f.mu.RUnlock()

	loggers := make([]Logger, 0, len(f.providers))
	for _, provider := range f.providers {
		loggers = append(loggers, provider.CreateLogger(category))
	}

	return &compositeLogger{
		loggers:      loggers,
		minimumLevel: f.minimumLevel,
		category:     category,
	}
}

func (f *loggerFactory) AddProvider(provider LoggerProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	provider.SetMinimumLevel(f.minimumLevel)
	f.providers = append(f.providers, provider)
}

func (f *loggerFactory) SetMinimumLevel(level LogLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minimumLevel = level
	for _, provider := range f.providers {
		provider.SetMinimumLevel(level)
	}
}

// compositeLogger 组合日志记录器（将日志发送到多个提供者）
type compositeLogger struct {
	loggers      []Logger
	minimumLevel LogLevel
	category     string
	fields       []Field
}

// NewCompositeLogger 创建组合日志记录器（用于外部包构建）
func NewCompositeLogger(loggers []Logger, minimumLevel LogLevel, category string) Logger {
	return &compositeLogger{
		loggers:      loggers,
		minimumLevel: minimumLevel,
		category:     category,
	}
}

func (l *compositeLogger) Trace(msg string, fields ...Field) {
	l.Log(LogLevelTrace, msg, fields...)
}

func (l *compositeLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *compositeLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *compositeLogger) Warn(msg string, fields ...Field) {
	l.Log(LogLevelWarn, msg, fields...)
}

func (l *compositeLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *compositeLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *compositeLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.minimumLevel {
		return
	}

	allFields := mergeFields(l.fields, fields)
	for _, logger := range l.loggers {
		logger.Log(level, msg, allFields...)
	}
}

func (l *compositeLogger) WithFields(fields ...Field) Logger {
	return &compositeLogger{
		loggers:      l.loggers,
		minimumLevel: l.minimumLevel,
		category:     l.category,
		fields:       mergeFields(l.fields, fields),
	}
}

func (l *compositeLogger) WithCategory(category string) Logger {
	return &compositeLogger{
		loggers:      l.loggers,
		minimumLevel: l.minimumLevel,
		category:     category,
		fields:       l.fields,
	}
}

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	Output           io.Writer
}

// ConsoleLoggerProvider 控制台日志提供者
type ConsoleLoggerProvider struct {
	options      ConsoleLoggerOptions
	formatter    *TextFormatter
	minimumLevel LogLevel
	writeMu      sync.Mutex
	mu           sync.RWMutex
}

func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	formatter := NewTextFormatter()
	formatter.IncludeTimestamp = options.IncludeTimestamp
	if options.TimestampFormat != "" {
		formatter.TimestampFormat = options.TimestampFormat
	}
	formatter.ColorOutput = options.ColorOutput
	return &ConsoleLoggerProvider{
		options:      options,
		formatter:    formatter,
		minimumLevel: LogLevelInfo,
	}
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return &formattingLogger{
		category: category,
		sink:     p,
	}
}

func (p *ConsoleLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

func (p *ConsoleLoggerProvider) level() LogLevel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minimumLevel
}

func (p *ConsoleLoggerProvider) writeEntry(entry *LogEntry) {
	data, err := p.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: format error: %v\n", err)
		return
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.options.Output.Write(data)
}

// logSink 接收格式化前的日志条目
type logSink interface {
	level() LogLevel
	writeEntry(entry *LogEntry)
}

// formattingLogger 把日志调用转换为 LogEntry 交给 sink 输出
// 控制台与文件提供者共用该实现，区别只在 sink 的写出方式
type formattingLogger struct {
	category string
	fields   []Field
	sink     logSink
}

func (l *formattingLogger) Trace(msg string, fields ...Field) {
	l.Log(LogLevelTrace, msg, fields...)
}

func (l *formattingLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *formattingLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *formattingLogger) Warn(msg string, fields ...Field) {
	l.Log(LogLevelWarn, msg, fields...)
}

func (l *formattingLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *formattingLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *formattingLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.sink.level() {
		return
	}
	l.sink.writeEntry(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *formattingLogger) WithFields(fields ...Field) Logger {
	return &formattingLogger{
		category: l.category,
		fields:   mergeFields(l.fields, fields),
		sink:     l.sink,
	}
}

func (l *formattingLogger) WithCategory(category string) Logger {
	return &formattingLogger{
		category: category,
		fields:   l.fields,
		sink:     l.sink,
	}
}

// FileLoggerOptions 文件日志选项
type FileLoggerOptions struct {
	Path       string
	MaxSize    int64 // 字节
	MaxBackups int
	Compress   bool
	BufferSize int // 异步写入队列长度（默认 1024）
}

// FileLoggerProvider 文件日志提供者
// 写入走 AsyncWriter，避免磁盘 I/O 阻塞调用方
type FileLoggerProvider struct {
	options      FileLoggerOptions
	minimumLevel LogLevel
	file         *os.File
	async        *AsyncWriter
	mu           sync.RWMutex
}

func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	if options.BufferSize <= 0 {
		options.BufferSize = 1024
	}
	return &FileLoggerProvider{
		options:      options,
		minimumLevel: LogLevelInfo,
	}
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.async == nil {
		file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: failed to open log file: %v\n", err)
			fallback := NewConsoleLoggerProvider(ConsoleLoggerOptions{Output: os.Stderr})
			return fallback.CreateLogger(category)
		}
		p.file = file
		p.async = NewAsyncWriter(file, NewTextFormatter(), p.options.BufferSize)
	}

	return &formattingLogger{
		category: category,
		sink:     p,
	}
}

func (p *FileLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

func (p *FileLoggerProvider) level() LogLevel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minimumLevel
}

func (p *FileLoggerProvider) writeEntry(entry *LogEntry) {
	p.mu.RLock()
	async := p.async
	p.mu.RUnlock()
	if async != nil {
		async.WriteLog(entry)
	}
}

// Close 刷新并关闭底层文件
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.async != nil {
		p.async.Close()
		p.async = nil
	}
	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// levelColors ANSI 颜色码，与 levelNames 同序
var levelColors = [...]string{
	"\033[90m", // gray
	"\033[36m", // cyan
	"\033[32m", // green
	"\033[33m", // yellow
	"\033[31m", // red
	"\033[35m", // magenta
}

// colorize 为日志级别添加颜色
func colorize(level LogLevel, text string) string {
	if level < LogLevelTrace || int(level) >= len(levelColors) {
		return text
	}
	return levelColors[level] + text + "\033[0m"
}
