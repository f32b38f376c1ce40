package core

import "context"

// HostedService 随应用启停的后台服务
// 这是 Option 层使用的服务契约，与 hosting 包的接口方法集一致
type HostedService interface {
	// Start 运行服务主循环
	// 框架在独立 goroutine 中调用，允许阻塞；返回 error 会触发优雅关闭
	Start(ctx context.Context) error

	// Stop 优雅停止服务，必须尊重 ctx 的超时
	Stop(ctx context.Context) error
}
