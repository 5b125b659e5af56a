package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeep.yaml")
	if err := os.WriteFile(path, []byte("server:\n  ssh_port: 22\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.SSHPort != 22 {
		t.Fatalf("expected overridden ssh_port 22, got %d", cfg.Server.SSHPort)
	}
	if cfg.Server.HealthPort != 2223 {
		t.Fatalf("expected default health_port 2223, got %d", cfg.Server.HealthPort)
	}
	if cfg.Paths.PasswdFile != "/etc/passwd" || cfg.Paths.ShadowFile != "/etc/shadow" {
		t.Fatalf("expected default account database paths, got %+v", cfg.Paths)
	}
	if len(cfg.Auth.Methods) != 2 {
		t.Fatalf("expected default methods, got %v", cfg.Auth.Methods)
	}
}

func TestLoadOverrides(t *testing.T) {
	content := `
auth:
  methods: [publickey]
  key_sources: [files, store]
  key_files:
    alice: [/srv/keys/alice]
  require_all_methods: true
  password_sentinels: ["", "x", "*", "LOCKED"]
paths:
  shadow_file: ""
`
	path := filepath.Join(t.TempDir(), "gatekeep.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Auth.Methods) != 1 || cfg.Auth.Methods[0] != "publickey" {
		t.Fatalf("unexpected methods: %v", cfg.Auth.Methods)
	}
	if len(cfg.Auth.KeySources) != 2 {
		t.Fatalf("unexpected key sources: %v", cfg.Auth.KeySources)
	}
	if got := cfg.Auth.KeyFiles["alice"]; len(got) != 1 || got[0] != "/srv/keys/alice" {
		t.Fatalf("unexpected key files: %v", cfg.Auth.KeyFiles)
	}
	if !cfg.Auth.RequireAllMethods {
		t.Fatalf("expected require_all_methods true")
	}
	if len(cfg.Auth.PasswordSentinels) != 4 {
		t.Fatalf("unexpected sentinels: %v", cfg.Auth.PasswordSentinels)
	}
	if cfg.Paths.ShadowFile != "" {
		t.Fatalf("expected empty shadow_file override, got %q", cfg.Paths.ShadowFile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
