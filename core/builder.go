package core

// BaseBuilder 供各模块 Builder 嵌入的公共底座
// 持有构建上下文，向外只暴露受限的读取与清理注册能力
type BaseBuilder struct {
	ctx *BuildContext
}

// NewBaseBuilder 创建基础构建器
func NewBaseBuilder(ctx *BuildContext) BaseBuilder {
	return BaseBuilder{ctx: ctx}
}

// ConfigContext 返回只读的配置上下文
func (b *BaseBuilder) ConfigContext() ConfigurationContext {
	return b.ctx
}

// RegisterCleanup 注册清理函数
// 仅嵌入方可调用；经 ConfigContext 拿到的接口没有这个入口
func (b *BaseBuilder) RegisterCleanup(key string, cleanup func()) {
	b.ctx.SetCleanup(key, cleanup)
}
