package logging

import (
	"os"
)

// LoggingBuilder 日志构建器
// 收集 Provider 与最小级别，Build 后产出不可变的 LoggerFactory
type LoggingBuilder struct {
	providers    []LoggerProvider
	minimumLevel LogLevel
}

// NewLoggingBuilder 创建日志构建器
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{
		minimumLevel: LogLevelInfo,
	}
}

// SetMinimumLevel 设置最小日志级别
// 对之前与之后添加的 Provider 都生效
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.minimumLevel = level
	for _, provider := range b.providers {
		provider.SetMinimumLevel(level)
	}
	return b
}

// AddProvider 添加日志提供者
func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	provider.SetMinimumLevel(b.minimumLevel)
	b.providers = append(b.providers, provider)
	return b
}

// AddConsole 添加控制台日志
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	opts := defaultConsoleOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewConsoleLoggerProvider(opts))
}

// AddFile 添加文件日志
func (b *LoggingBuilder) AddFile(path string, options ...FileLoggerOptions) *LoggingBuilder {
	opts := defaultFileOptions(path)
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewFileLoggerProvider(opts))
}

// Build 构建日志工厂
func (b *LoggingBuilder) Build() LoggerFactory {
	factory := &loggerFactory{
		minimumLevel: b.minimumLevel,
	}
	for _, provider := range b.providers {
		factory.AddProvider(provider)
	}
	return factory
}

func defaultConsoleOptions() ConsoleLoggerOptions {
	return ConsoleLoggerOptions{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
		ColorOutput:      true,
		Output:           os.Stdout,
	}
}

func defaultFileOptions(path string) FileLoggerOptions {
	return FileLoggerOptions{
		Path:       path,
		MaxSize:    100 * 1024 * 1024, // 100MB
		MaxBackups: 10,
	}
}
