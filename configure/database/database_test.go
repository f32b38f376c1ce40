package database_test

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/configure/database"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

type User struct {
	gorm.Model
	Name string
}

type MockDBService struct {
	Master *gorm.DB `inject:"master"`
	Slave  *gorm.DB `inject:"slave,optional"`
}

// DBConfig 模拟用户定义的配置结构
type DBConfig struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

func TestDatabaseConfiguration(t *testing.T) {
	builder := core.NewApplicationBuilder()

	// 1. 配置内存配置源
	builder.ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
		cb.AddInMemory(map[string]any{
			"db": map[string]any{
				"master": map[string]any{
					"dsn":            "file::memory:?cache=shared",
					"max_open_conns": 5,
				},
			},
		})
	})

	// 2. 配置 Database：从配置节读取强类型配置再建连
	builder.Configure(func(ctx *core.BuildContext) {
		dbConf, err := config.Section[DBConfig](ctx.GetConfiguration(), "db.master")
		if err != nil {
			t.Fatalf("Failed to load db config: %v", err)
		}

		database.Configure(func(b *database.Builder) {
			b.Add("master", sqlite.Open(dbConf.DSN), func(o *database.DatabaseOptions) {
				o.MaxOpenConns = dbConf.MaxOpenConns
				o.AutoMigrate = []any{&User{}}
			})
		})(ctx)
	})

	// 3. 注册依赖数据库的服务
	builder.Configure(func(ctx *core.BuildContext) {
		if err := di.RegisterSingleton[*MockDBService](ctx.Injector(), func() *MockDBService {
			return &MockDBService{}
		}); err != nil {
			t.Fatalf("Failed to register service: %v", err)
		}
	})

	app := builder.Build()

	var svc *MockDBService
	app.GetService(&svc)

	if svc.Master == nil {
		t.Fatal("Master DB should not be nil")
	}
	if svc.Slave != nil {
		t.Error("Slave DB should stay nil (optional, not configured)")
	}

	// 验证连接池配置生效
	sqlDB, _ := svc.Master.DB()
	stats := sqlDB.Stats()
	if stats.MaxOpenConnections != 5 {
		t.Errorf("Expected MaxOpenConns 5, got %d", stats.MaxOpenConnections)
	}

	// 验证数据库可用
	if err := svc.Master.Create(&User{Name: "test"}).Error; err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	// 验证按名称解析
	master, err := di.Resolve[*gorm.DB](app.Services(), di.Named("master"))
	if err != nil {
		t.Fatalf("Failed to resolve named db: %v", err)
	}
	if master == nil {
		t.Error("Resolved 'master' db is nil")
	}
}

func TestDatabaseBuilder_Errors(t *testing.T) {
	logger := logging.NewLogger()
	builder := database.NewBuilder(nil)

	// Missing dialector
	builder.Add("invalid", nil, nil)

	// Duplicate
	builder.Add("dup", sqlite.Open("file::memory:"), nil)
	builder.Add("dup", sqlite.Open("file::memory:"), nil)

	_, err := builder.Build(logger)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	t.Logf("Got expected error: %v", err)
}
