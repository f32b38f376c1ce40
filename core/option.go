package core

// Option 装配 Runtime 的函数
// 微内核模式下这是框架唯一的扩展点：每个能力包导出自己的 New(...) Option
type Option func(rt *Runtime) error
