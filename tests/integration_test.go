package tests

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/gocrud/inject/config"
	"github.com/gocrud/inject/core"
	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/web"
)

// fakeDialector 满足 gorm.Dialector 但不真正建连
type fakeDialector struct{}

func (fakeDialector) Name() string { return "fake" }

func (fakeDialector) Initialize(db *gorm.DB) error { return nil }

func (fakeDialector) Migrator(db *gorm.DB) gorm.Migrator { return nil }

func (fakeDialector) DataTypeOf(field *schema.Field) string { return "" }

func (fakeDialector) DefaultValueOf(field *schema.Field) clause.Expression { return clause.Expr{} }

func (fakeDialector) BindVarTo(writer clause.Writer, stmt *gorm.Statement, v interface{}) {}

func (fakeDialector) QuoteTo(writer clause.Writer, str string) {}

func (fakeDialector) Explain(sql string, vars ...interface{}) string { return "" }

// greeterService 字段注入的业务服务
type greeterService struct {
	DB     *gorm.DB             `inject:""`
	Config config.Configuration `inject:""`
}

func (s *greeterService) Greeting() string {
	if s.Config == nil {
		return "no-config"
	}
	greeting := s.Config.Get("app.name")
	if s.DB == nil {
		greeting += "-nodb"
	}
	return greeting
}

// greeterController 构造函数注入的控制器
type greeterController struct {
	svc *greeterService
}

func newGreeterController(svc *greeterService) *greeterController {
	return &greeterController{svc: svc}
}

func (c *greeterController) RegisterRoutes(r gin.IRouter) {
	r.GET("/greet", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello "+c.svc.Greeting())
	})
}

// waitForAddress 轮询直到 Web 主机真正绑定了端口
func waitForAddress(t *testing.T, host *web.Host) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := host.Address(); addr != "" && addr != ":0" {
			return addr
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("web host never reported a bound address")
	return ""
}

func inMemoryConfig(values map[string]any) core.Option {
	return func(rt *core.Runtime) error {
		builder := config.NewConfigurationBuilder()
		builder.AddInMemory(values)
		cfg, err := builder.Build()
		if err != nil {
			return err
		}
		return rt.Provide(cfg, di.KeyFor[config.Configuration]())
	}
}

// 端到端：配置 + 伪 DB + Web 主机，经 HTTP 验证字段注入与构造注入都生效
func TestRuntimeServesInjectedController(t *testing.T) {
	rt := core.NewRuntime()

	err := rt.Apply(
		inMemoryConfig(map[string]any{
			"app": map[string]any{"name": "wired"},
		}),
		func(rt *core.Runtime) error {
			db, err := gorm.Open(fakeDialector{})
			if err != nil {
				return err
			}
			return rt.Provide(db)
		},
		web.New(web.WithControllers(newGreeterController), web.WithPort(0)),
	)
	require.NoError(t, err)

	require.NoError(t, rt.Provide(&greeterService{}))
	require.NoError(t, rt.Injector.WarmUp())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, rt.Lifecycle.Start(ctx, rt.Injector))
	defer rt.Lifecycle.Stop(ctx)

	host := core.GetFeature[*web.Host](rt)
	require.NotNil(t, host, "web host feature missing")

	addr := waitForAddress(t, host)

	resp, err := http.Get(fmt.Sprintf("http://%s/greet", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "hello wired", string(body))
}

// blockingWorker 在 Start 里阻塞，直到 Stop 放行
type blockingWorker struct {
	started chan struct{}
	stopped chan struct{}
	release chan struct{}
}

func newBlockingWorker() *blockingWorker {
	return &blockingWorker{
		started: make(chan struct{}),
		stopped: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (w *blockingWorker) Start(ctx context.Context) error {
	close(w.started)
	<-w.release
	return nil
}

func (w *blockingWorker) Stop(ctx context.Context) error {
	close(w.release)
	close(w.stopped)
	return nil
}

func TestRuntimeHostedServiceLifecycle(t *testing.T) {
	rt := core.NewRuntime()
	worker := newBlockingWorker()

	require.NoError(t, rt.Apply(core.WithHostedService(worker)))

	ctx := context.Background()
	require.NoError(t, rt.Lifecycle.Start(ctx, rt.Injector))

	select {
	case <-worker.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start")
	}

	require.NoError(t, rt.Lifecycle.Stop(ctx))

	select {
	case <-worker.stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
