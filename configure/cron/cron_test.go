package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

func testLogger() logging.Logger {
	return logging.NewLoggingBuilder().SetMinimumLevel(logging.LogLevelError).Build().CreateLogger("cron-test")
}

func TestAddJobInvalidSpec(t *testing.T) {
	svc := newService(testLogger())

	if err := svc.addJob("not a cron spec", "bad", func() {}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestJobRegistrationAndRemoval(t *testing.T) {
	svc := newService(testLogger())

	if err := svc.addJob("@every 1h", "hourly", func() {}); err != nil {
		t.Fatalf("addJob failed: %v", err)
	}
	if _, ok := svc.jobs["hourly"]; !ok {
		t.Fatal("job not recorded")
	}

	svc.removeJob("hourly")
	if _, ok := svc.jobs["hourly"]; ok {
		t.Fatal("job not removed")
	}
}

func TestServiceRunsJobs(t *testing.T) {
	svc := newService(testLogger(), func(o *options) { o.EnableSeconds = true })

	var runs atomic.Int32
	if err := svc.addJob("* * * * * *", "tick", func() { runs.Add(1) }); err != nil {
		t.Fatalf("addJob failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	time.Sleep(2500 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v", err)
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if runs.Load() == 0 {
		t.Error("job never ran")
	}
}

func TestWrapHandlerWithDI(t *testing.T) {
	injector := di.New()
	di.RegisterInstance(injector, "payload")

	var got atomic.Value
	builder := NewBuilder()
	wrapped, err := builder.wrapHandlerWithDI(injector, "job", testLogger(), func(s string) {
		got.Store(s)
	})
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}

	wrapped()
	if got.Load() != "payload" {
		t.Errorf("handler received %v", got.Load())
	}
}

func TestWrapHandlerRejectsNonFunc(t *testing.T) {
	builder := NewBuilder()
	if _, err := builder.wrapHandlerWithDI(di.New(), "job", testLogger(), 42); err == nil {
		t.Fatal("expected error for non-function handler")
	}
}
