package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, `
tcpAddress: "127.0.0.1:9000"
httpAddress: "127.0.0.1:9001"
nodeId: "node-1"
minerWalletAddress: "deadbeef"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HasBootstrap() {
		t.Fatal("expected no bootstrap address")
	}
	if cfg.TCPAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected tcp address: %s", cfg.TCPAddress)
	}
}

func TestLoadMissingFieldFails(t *testing.T) {
	path := writeTestConfig(t, `
tcpAddress: "127.0.0.1:9000"
httpAddress: "127.0.0.1:9001"
nodeId: "node-1"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing minerWalletAddress")
	}
}

func TestLoadWithBootstrap(t *testing.T) {
	path := writeTestConfig(t, `
tcpAddress: "127.0.0.1:9000"
httpAddress: "127.0.0.1:9001"
bootstrapAddress: "127.0.0.1:9100"
nodeId: "node-1"
minerWalletAddress: "deadbeef"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.HasBootstrap() {
		t.Fatal("expected bootstrap address to be set")
	}
}
