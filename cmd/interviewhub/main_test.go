package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"interviewhub/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(&config.LogConfig{Level: "warn"})
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}

	dev, err := newLogger(&config.LogConfig{Level: "debug", Development: true})
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled")
	}

	if _, err := newLogger(&config.LogConfig{Level: "chatty"}); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestRun_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"http": {"port": `), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := run(context.Background(), path, filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	dir := t.TempDir()
	t.Setenv("INTERVIEWHUB_HTTP_HOST", "127.0.0.1")
	t.Setenv("INTERVIEWHUB_HTTP_PORT", fmt.Sprint(port))
	t.Setenv("INTERVIEWHUB_DATABASE_PATH", filepath.Join(dir, "run.db"))
	t.Setenv("INTERVIEWHUB_RECORDINGS_DIR", filepath.Join(dir, "recordings"))
	t.Setenv("INTERVIEWHUB_LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, "", filepath.Join(dir, "none.env")) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("health status %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
