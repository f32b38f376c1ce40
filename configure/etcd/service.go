package etcd

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdClientOptions etcd 客户端配置选项
type EtcdClientOptions struct {
	Name        string        // 客户端名称
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	DialTimeout time.Duration // 拨号超时时间
	PingTimeout time.Duration // 建连后探活超时时间

	AutoSyncInterval   time.Duration // 成员列表自动同步间隔（可选）
	MaxCallSendMsgSize int           // 最大发送消息大小（可选）
	MaxCallRecvMsgSize int           // 最大接收消息大小（可选）
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *EtcdClientOptions {
	return &EtcdClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		PingTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (o *EtcdClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}

// toClientConfig 转换为 etcd 驱动的连接配置
func (o *EtcdClientOptions) toClientConfig() clientv3.Config {
	config := clientv3.Config{
		Endpoints:   o.Endpoints,
		Username:    o.Username,
		Password:    o.Password,
		DialTimeout: o.DialTimeout,
	}
	if o.AutoSyncInterval > 0 {
		config.AutoSyncInterval = o.AutoSyncInterval
	}
	if o.MaxCallSendMsgSize > 0 {
		config.MaxCallSendMsgSize = o.MaxCallSendMsgSize
	}
	if o.MaxCallRecvMsgSize > 0 {
		config.MaxCallRecvMsgSize = o.MaxCallRecvMsgSize
	}
	return config
}

// EtcdClientFactory etcd 客户端工厂
type EtcdClientFactory struct {
	clients map[string]*clientv3.Client
	mu      sync.RWMutex
}

// NewEtcdClientFactory 创建客户端工厂
func NewEtcdClientFactory() *EtcdClientFactory {
	return &EtcdClientFactory{
		clients: make(map[string]*clientv3.Client),
	}
}

// Register 注册 etcd 客户端
func (f *EtcdClientFactory) Register(opts EtcdClientOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("etcd client '%s' already registered", opts.Name)
	}

	client, err := clientv3.New(opts.toClientConfig())
	if err != nil {
		return fmt.Errorf("failed to create etcd client: %w", err)
	}

	// 探活，确认集群可达
	ctx, cancel := context.WithTimeout(context.Background(), opts.PingTimeout)
	defer cancel()
	if _, err := client.Status(ctx, opts.Endpoints[0]); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to etcd: %w", err)
	}

	f.clients[opts.Name] = client
	return nil
}

// Names 返回所有已注册客户端的名称
func (f *EtcdClientFactory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	return names
}

// Get 获取指定名称的 etcd 客户端
func (f *EtcdClientFactory) Get(name string) (*clientv3.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("etcd client '%s' not found", name)
	}
	return client, nil
}

// Close 关闭所有 etcd 客户端
func (f *EtcdClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for name, client := range f.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client '%s': %w", name, err))
		}
	}
	f.clients = make(map[string]*clientv3.Client)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing etcd clients: %v", errs)
	}
	return nil
}
