package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitDirCreatesStructure(t *testing.T) {
	dir := t.TempDir()
	if err := InitDir(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, sub := range []string{"logs", "schemas", "patterns"} {
		info, err := os.Stat(filepath.Join(dir, Dir, sub))
		if err != nil || !info.IsDir() {
			t.Fatalf("missing %s directory: %v", sub, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, Dir, "config.yaml")); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
}

func TestInitDirIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	if err := InitDir(dir); err != nil {
		t.Fatalf("first init: %v", err)
	}
	custom := []byte("version: 1\nwriter: gdd\ndefault_block_size: 4M\n")
	path := filepath.Join(dir, Dir, "config.yaml")
	if err := os.WriteFile(path, custom, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}
	if err := InitDir(dir); err != nil {
		t.Fatalf("second init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) != string(custom) {
		t.Fatalf("re-init clobbered user config")
	}
}

func TestNewAppliesDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cfg.Settings.Writer != "dd" {
		t.Fatalf("writer = %q, want dd", cfg.Settings.Writer)
	}
	if cfg.Settings.DefaultBlockSize != "1M" {
		t.Fatalf("block size = %q, want 1M", cfg.Settings.DefaultBlockSize)
	}
	if got := cfg.WriterCommand(); len(got) != 1 || got[0] != "dd" {
		t.Fatalf("writer command = %v", got)
	}
}

func TestNewLoadsCustomSettings(t *testing.T) {
	dir := t.TempDir()
	if err := InitDir(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	custom := []byte("version: 1\nwriter: /usr/local/bin/gdd conv=fsync\ndefault_block_size: 4M\nterminate_wait_seconds: 10\n")
	if err := os.WriteFile(filepath.Join(dir, Dir, "config.yaml"), custom, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cmd := cfg.WriterCommand()
	if len(cmd) != 2 || cmd[0] != "/usr/local/bin/gdd" || cmd[1] != "conv=fsync" {
		t.Fatalf("writer command = %v", cmd)
	}
	if cfg.Settings.TerminateWaitSeconds != 10 {
		t.Fatalf("terminate wait = %d, want 10", cfg.Settings.TerminateWaitSeconds)
	}
}

func TestNewRejectsBadBlockSize(t *testing.T) {
	dir := t.TempDir()
	if err := InitDir(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	bad := []byte("version: 1\ndefault_block_size: potato\n")
	if err := os.WriteFile(filepath.Join(dir, Dir, "config.yaml"), bad, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for invalid default block size")
	}
}
