package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleEntry() *LogEntry {
	return &LogEntry{
		Time:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}
}

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	f.ColorOutput = false

	out, err := f.Format(sampleEntry())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	str := string(out)
	for _, want := range []string{"INFO", "[Test]", "Hello", "key=val"} {
		if !strings.Contains(str, want) {
			t.Errorf("output %q missing %q", str, want)
		}
	}
}

func TestJsonFormatter(t *testing.T) {
	out, err := NewJsonFormatter().Format(sampleEntry())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(out, &data); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if data["level"] != "INFO" {
		t.Errorf("level = %v", data["level"])
	}
	if data["category"] != "Test" {
		t.Errorf("category = %v", data["category"])
	}
	fields, ok := data["fields"].(map[string]interface{})
	if !ok {
		t.Fatal("fields map missing")
	}
	if fields["key"] != "val" {
		t.Errorf("fields.key = %v", fields["key"])
	}
}

func TestJsonFormatterOmitsEmpty(t *testing.T) {
	out, err := NewJsonFormatter().Format(&LogEntry{
		Time:    time.Now(),
		Level:   LogLevelWarn,
		Message: "bare",
	})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	str := string(out)
	if strings.Contains(str, "category") || strings.Contains(str, "fields") {
		t.Errorf("empty keys should be omitted, got %s", str)
	}
}

func TestConsoleLoggerPipeline(t *testing.T) {
	var buf bytes.Buffer
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelInfo).
		AddConsole(ConsoleLoggerOptions{
			Output:      &buf,
			ColorOutput: false,
		}).
		Build()

	logger := factory.CreateLogger("pipeline")
	logger.Debug("filtered out")
	logger.Info("kept", Field{Key: "n", Value: 1})

	out := buf.String()
	if strings.Contains(out, "filtered out") {
		t.Error("debug message should be filtered at Info level")
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "n=1") {
		t.Errorf("info message missing from output: %q", out)
	}
}

func TestWithFieldsDoesNotLeakBetweenChildren(t *testing.T) {
	var buf bytes.Buffer
	factory := NewLoggingBuilder().
		AddConsole(ConsoleLoggerOptions{Output: &buf, ColorOutput: false}).
		Build()

	base := factory.CreateLogger("base").WithFields(Field{Key: "a", Value: 1})
	childB := base.WithFields(Field{Key: "b", Value: 2})
	childC := base.WithFields(Field{Key: "c", Value: 3})

	childB.Info("from-b")
	childC.Info("from-c")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if strings.Contains(lines[0], "c=3") {
		t.Error("child B output must not contain child C's field")
	}
	if strings.Contains(lines[1], "b=2") {
		t.Error("child C output must not contain child B's field")
	}
}

func TestAsyncWriter(t *testing.T) {
	writer := &syncWriter{}

	asyncWriter := NewAsyncWriter(writer, NewTextFormatter(), 10)
	entry := &LogEntry{
		Time:    time.Now(),
		Level:   LogLevelInfo,
		Message: "Async",
	}

	for i := 0; i < 5; i++ {
		asyncWriter.WriteLog(entry)
	}

	// Close 前必须把队列冲干净
	asyncWriter.Close()

	lines := strings.Split(strings.TrimSpace(writer.String()), "\n")
	if len(lines) != 5 {
		t.Errorf("expected 5 lines, got %d", len(lines))
	}
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func BenchmarkAsyncLogging(b *testing.B) {
	// io.Discard 避开 I/O，量 AsyncWriter 自身的开销
	asyncWriter := NewAsyncWriter(io.Discard, NewTextFormatter(), 10000)
	defer asyncWriter.Close()

	entry := &LogEntry{
		Time:    time.Now(),
		Level:   LogLevelInfo,
		Message: "Benchmark",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		asyncWriter.WriteLog(entry)
	}
}
