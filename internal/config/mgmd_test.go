package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "mgmd.cfg")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadMgmdConfigDefaults(t *testing.T) {
	p := writeConfig(t, `
[global]
listenaddr = 127.0.0.1:8080
namespaceaddr = http://127.0.0.1:9000

[space "default"]
groupsize = 4
groupmod = 1
`)
	cfg, err := LoadMgmdConfig(p)
	if err != nil {
		t.Fatalf("LoadMgmdConfig: %v", err)
	}
	if cfg.Global.FsckWorkers != 4 {
		t.Fatalf("expected default FsckWorkers=4, got %d", cfg.Global.FsckWorkers)
	}
	if cfg.Global.FsckMaxQueuedJobs != 4096 {
		t.Fatalf("expected default FsckMaxQueuedJobs=4096, got %d", cfg.Global.FsckMaxQueuedJobs)
	}
	sp, ok := cfg.Space["default"]
	if !ok || sp.GroupSize != 4 {
		t.Fatalf("expected space %q with GroupSize=4, got %+v", "default", sp)
	}
}

func TestLoadMgmdConfigMissingListenAddr(t *testing.T) {
	p := writeConfig(t, `
[global]
namespaceaddr = http://127.0.0.1:9000
`)
	if _, err := LoadMgmdConfig(p); err == nil {
		t.Fatal("expected error for missing listenaddr")
	}
}

func TestBalanceCapabilityTTLFallback(t *testing.T) {
	cfg := &MgmdConfig{}
	if got := cfg.BalanceCapabilityTTL(5 * time.Minute); got != 5*time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	cfg.Global.BalanceCapabilityTTL = "90s"
	if got := cfg.BalanceCapabilityTTL(5 * time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
