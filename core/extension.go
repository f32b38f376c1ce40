package core

import "fmt"

// Extension 应用程序扩展
// 扩展至少要实现 ServiceConfigurator 或 AppConfigurator 之一
type Extension interface {
	// Name 扩展名称，用于日志与错误定位
	Name() string
}

// ServiceConfigurator 在 ConfigureServices 阶段注册服务绑定
type ServiceConfigurator interface {
	ConfigureServices(services *ServiceCollection)
}

// AppConfigurator 在 Configure 阶段操作构建上下文
// 典型用途：注册 Options、托管服务、清理函数
type AppConfigurator interface {
	ConfigureBuilder(ctx *BuildContext)
}

// validateExtension 校验扩展实现了至少一个受支持的接口
// 方法签名写错（常见：值接收者/指针接收者不匹配）会在这里立刻暴露
func validateExtension(ext Extension) {
	switch ext.(type) {
	case ServiceConfigurator, AppConfigurator:
		return
	}
	panic(fmt.Sprintf(
		"core: extension '%s' implements neither ServiceConfigurator nor AppConfigurator; check the method signatures",
		ext.Name()))
}
