package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// Configuration 配置接口
type Configuration interface {
	// Get 获取配置值
	Get(key string) string
	// GetWithDefault 获取配置值，如果不存在则返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetSection 获取配置节
	GetSection(key string) Configuration
	// Bind 绑定配置到结构体
	Bind(key string, target any) error
	// GetAll 获取所有配置
	GetAll() map[string]any
}

// ConfigurationSource 配置源接口
type ConfigurationSource interface {
	Load() (map[string]any, error)
	Name() string
}

// WatchableSource 支持变更监听的配置源
// 配置源变更时回调 onChange，由上层触发整体重载
type WatchableSource interface {
	ConfigurationSource
	StartWatch(ctx context.Context, onChange func()) error
	StopWatch()
}

// ConfigurationBuilder 配置构建器
type ConfigurationBuilder struct {
	sources []ConfigurationSource
	mu      sync.RWMutex
}

// NewConfigurationBuilder 创建配置构建器
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{
		sources: make([]ConfigurationSource, 0),
	}
}

// Add 添加配置源
func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddJsonFile 添加 JSON 文件配置源
func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	isOptional := len(optional) > 0 && optional[0]
	return b.Add(&JsonFileSource{Path: path, Optional: isOptional})
}

// AddYamlFile 添加 YAML 文件配置源
func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	isOptional := len(optional) > 0 && optional[0]
	return b.Add(&YamlFileSource{Path: path, Optional: isOptional})
}

// AddEnvironmentVariables 添加环境变量配置源
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

// AddInMemory 添加内存配置源
func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

// EtcdOptions etcd 配置选项
type EtcdOptions struct {
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	Prefix      string        // 键前缀（可选）
	Timeout     time.Duration // 读取超时时间（默认 5 秒）
	DialTimeout time.Duration // 拨号超时时间（默认 5 秒）
}

// AddEtcd 添加 etcd 配置源
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return b.Add(&EtcdSource{Options: opts})
}

// GetSources 返回已注册的配置源
func (b *ConfigurationBuilder) GetSources() []ConfigurationSource {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ConfigurationSource, len(b.sources))
	copy(out, b.sources)
	return out
}

// load 按顺序加载所有配置源并合并（后面的覆盖前面的）
func (b *ConfigurationBuilder) load() (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	merged := make(map[string]any)
	for _, source := range b.sources {
		data, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config source %s: %w", source.Name(), err)
		}
		mergeMaps(merged, data)
	}
	return merged, nil
}

// Build 构建一次性的配置快照
func (b *ConfigurationBuilder) Build() (Configuration, error) {
	data, err := b.load()
	if err != nil {
		return nil, err
	}
	return newSnapshot(data), nil
}

// BuildReloadable 构建可重载的配置
// 配置源变更后调用 Reload 原子替换数据，读取方无锁
func (b *ConfigurationBuilder) BuildReloadable() (*ReloadableConfiguration, error) {
	data, err := b.load()
	if err != nil {
		return nil, err
	}
	cfg := &ReloadableConfiguration{builder: b, store: NewValueStore()}
	cfg.store.Store(data)
	return cfg, nil
}

// snapshot 是一份不可变的配置视图，读取经由 ValueStore 无锁进行
type snapshot struct {
	store *ValueStore
}

func newSnapshot(data map[string]any) *snapshot {
	s := &snapshot{store: NewValueStore()}
	s.store.Store(data)
	return s
}

func (c *snapshot) Get(key string) string {
	value := lookupPath(c.store.Load(), key)
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (c *snapshot) GetWithDefault(key, defaultValue string) string {
	if value := c.Get(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *snapshot) GetInt(key string) (int, error) {
	value := lookupPath(c.store.Load(), key)
	if value == nil {
		return 0, fmt.Errorf("key %s not found", key)
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("cannot convert %v to int", value)
	}
}

func (c *snapshot) GetBool(key string) (bool, error) {
	value := lookupPath(c.store.Load(), key)
	if value == nil {
		return false, fmt.Errorf("key %s not found", key)
	}
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("cannot convert %v to bool", value)
	}
}

func (c *snapshot) GetSection(key string) Configuration {
	value := lookupPath(c.store.Load(), key)
	if m, ok := value.(map[string]any); ok {
		return newSnapshot(m)
	}
	return newSnapshot(make(map[string]any))
}

func (c *snapshot) Bind(key string, target any) error {
	return bindPath(c.store.Load(), key, target)
}

func (c *snapshot) GetAll() map[string]any {
	result := make(map[string]any)
	mergeMaps(result, c.store.Load())
	return result
}

// ReloadableConfiguration 可重载配置
// 读取走当前数据的原子快照；Reload 重新加载全部配置源并通知订阅者
type ReloadableConfiguration struct {
	builder   *ConfigurationBuilder
	store     *ValueStore
	mu        sync.Mutex
	callbacks []func()
}

// Reload 重新加载全部配置源并原子替换当前数据
func (c *ReloadableConfiguration) Reload() error {
	data, err := c.builder.load()
	if err != nil {
		return err
	}
	c.store.Store(data)

	c.mu.Lock()
	callbacks := make([]func(), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnReload 注册重载回调（OptionsCache 借此跟随配置变更）
func (c *ReloadableConfiguration) OnReload(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

func (c *ReloadableConfiguration) Get(key string) string {
	return (&snapshot{store: c.store}).Get(key)
}

func (c *ReloadableConfiguration) GetWithDefault(key, defaultValue string) string {
	if value := c.Get(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *ReloadableConfiguration) GetInt(key string) (int, error) {
	return (&snapshot{store: c.store}).GetInt(key)
}

func (c *ReloadableConfiguration) GetBool(key string) (bool, error) {
	return (&snapshot{store: c.store}).GetBool(key)
}

func (c *ReloadableConfiguration) GetSection(key string) Configuration {
	return (&snapshot{store: c.store}).GetSection(key)
}

func (c *ReloadableConfiguration) Bind(key string, target any) error {
	return bindPath(c.store.Load(), key, target)
}

func (c *ReloadableConfiguration) GetAll() map[string]any {
	result := make(map[string]any)
	mergeMaps(result, c.store.Load())
	return result
}

// lookupPath 通过路径获取值（支持 "a:b:c" 或 "a.b.c"），路径解析结果有缓存
func lookupPath(data map[string]any, path string) any {
	if path == "" {
		return data
	}

	current := any(data)
	for _, part := range globalPathCache.GetPathSegments(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// bindPath 把路径下的子树绑定到结构体，经由 JSON 编解码完成字段映射
func bindPath(data map[string]any, key string, target any) error {
	var sub any
	if key == "" {
		sub = data
	} else {
		sub = lookupPath(data, key)
	}
	if sub == nil {
		return fmt.Errorf("key %s not found", key)
	}

	jsonData, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if err := json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// mergeMaps 递归合并两个 map，src 覆盖 dst 的同名标量
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if dstMap, ok := dst[k].(map[string]any); ok {
			if srcMap, ok := v.(map[string]any); ok {
				mergeMaps(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

// JsonFileSource JSON 文件配置源
type JsonFileSource struct {
	Path     string
	Optional bool
}

func (s *JsonFileSource) Name() string {
	return fmt.Sprintf("JsonFile(%s)", s.Path)
}

func (s *JsonFileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return result, nil
}

// YamlFileSource YAML 文件配置源
type YamlFileSource struct {
	Path     string
	Optional bool
}

func (s *YamlFileSource) Name() string {
	return fmt.Sprintf("YamlFile(%s)", s.Path)
}

func (s *YamlFileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, err
	}

	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return result, nil
}

// EnvironmentVariableSource 环境变量配置源
type EnvironmentVariableSource struct {
	Prefix string
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load() (map[string]any, error) {
	result := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key, value := parts[0], parts[1]

		if s.Prefix != "" {
			if !strings.HasPrefix(key, s.Prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.Prefix)
		}

		// APP_SERVER_PORT -> server:port
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "_", ":")
		setNestedValue(result, key, value)
	}

	return result, nil
}

// InMemorySource 内存配置源
type InMemorySource struct {
	Data map[string]any
}

func (s *InMemorySource) Name() string {
	return "InMemory"
}

func (s *InMemorySource) Load() (map[string]any, error) {
	result := make(map[string]any)
	mergeMaps(result, s.Data)
	return result, nil
}

// setNestedValue 按 "a:b:c" 路径写入嵌套值，字符串值尽量还原为数值/布尔
func setNestedValue(data map[string]any, path string, value any) {
	parts := strings.Split(path, ":")
	current := data

	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		m, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = m
	}

	if strValue, ok := value.(string); ok {
		if intValue, err := strconv.Atoi(strValue); err == nil {
			value = intValue
		} else if floatValue, err := strconv.ParseFloat(strValue, 64); err == nil {
			value = floatValue
		} else if boolValue, err := strconv.ParseBool(strValue); err == nil {
			value = boolValue
		}
	}

	current[parts[len(parts)-1]] = value
}

// EtcdSource etcd 配置源，支持前缀变更监听
type EtcdSource struct {
	Options EtcdOptions

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) newClient() (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
}

func (s *EtcdSource) prefix() string {
	if s.Options.Prefix == "" {
		return "/"
	}
	return s.Options.Prefix
}

func (s *EtcdSource) Load() (map[string]any, error) {
	cli, err := s.newClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.Timeout)
	defer cancel()

	resp, err := cli.Get(ctx, s.prefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get config from etcd: %w", err)
	}

	result := make(map[string]any)
	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		value := string(kv.Value)

		if s.Options.Prefix != "" {
			key = strings.TrimPrefix(key, s.Options.Prefix)
		}
		key = strings.TrimPrefix(key, "/")
		if key == "" {
			continue
		}

		// /database/host -> database:host
		key = strings.ReplaceAll(key, "/", ":")
		setNestedValue(result, key, decodeEtcdValue(value))
	}

	return result, nil
}

// StartWatch 启动前缀监听，任何键变更都触发 onChange
func (s *EtcdSource) StartWatch(ctx context.Context, onChange func()) error {
	cli, err := s.newClient()
	if err != nil {
		return fmt.Errorf("failed to create etcd watch client: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchMu.Lock()
	s.watchCancel = func() {
		cancel()
		cli.Close()
	}
	s.watchMu.Unlock()

	ch := cli.Watch(watchCtx, s.prefix(), clientv3.WithPrefix())
	go func() {
		for resp := range ch {
			if resp.Err() != nil {
				continue
			}
			if len(resp.Events) > 0 {
				onChange()
			}
		}
	}()
	return nil
}

// StopWatch 停止监听
func (s *EtcdSource) StopWatch() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
}

// decodeEtcdValue 解析 etcd 中存储的值：先试 JSON，再试 YAML，最后按字符串处理
func decodeEtcdValue(value string) any {
	var jsonValue any
	if err := json.Unmarshal([]byte(value), &jsonValue); err == nil {
		return jsonValue
	}
	var yamlValue any
	if err := yaml.Unmarshal([]byte(value), &yamlValue); err == nil {
		return yamlValue
	}
	return value
}
