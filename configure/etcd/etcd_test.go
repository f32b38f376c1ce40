package etcd_test

import (
	"testing"
	"time"

	"github.com/gocrud/inject/configure/etcd"
	"github.com/gocrud/inject/logging"
)

func TestDefaultOptions(t *testing.T) {
	opts := etcd.NewDefaultOptions("master")

	if opts.Name != "master" {
		t.Errorf("Name = %q", opts.Name)
	}
	if len(opts.Endpoints) != 1 || opts.Endpoints[0] != "localhost:2379" {
		t.Errorf("Endpoints = %v", opts.Endpoints)
	}
	if opts.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v", opts.DialTimeout)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("default options should validate: %v", err)
	}
}

func TestBuilderCollectsErrors(t *testing.T) {
	logger := logging.NewLogger()
	builder := etcd.NewBuilder()

	// 无效配置
	builder.AddClient("invalid", func(o *etcd.EtcdClientOptions) {
		o.Endpoints = nil
	})

	// 重复配置
	builder.AddClient("duplicate", nil)
	builder.AddClient("duplicate", nil)

	_, err := builder.Build(logger)
	if err == nil {
		t.Fatal("Expected error from invalid configuration, got nil")
	}

	t.Logf("Got expected error: %v", err)
}

func TestBuilderEmpty(t *testing.T) {
	factory, err := etcd.NewBuilder().Build(logging.NewLogger())
	if err != nil {
		t.Fatalf("empty build should not fail: %v", err)
	}
	if factory != nil {
		t.Error("empty build should yield nil factory")
	}
}

func TestFactoryGetUnknown(t *testing.T) {
	factory := etcd.NewEtcdClientFactory()

	if _, err := factory.Get("nope"); err == nil {
		t.Error("expected error for unknown client")
	}
	if err := factory.Close(); err != nil {
		t.Errorf("Close on empty factory: %v", err)
	}
}
