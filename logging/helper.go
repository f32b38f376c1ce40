package logging

// NewLogger 创建一个带默认控制台输出的 Logger
// 用于测试以及尚未配置日志系统的早期启动阶段
func NewLogger() Logger {
	factory := NewLoggingBuilder().
		AddConsole().
		Build()
	return factory.CreateLogger("app")
}
