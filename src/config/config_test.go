package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	raw := `{
		"data_dir": "extracts",
		"model_path": "m.gob",
		"fill_policy": "drop_row",
		"refresh_interval": "90s",
		"email": {"server": "imap.example.com:993", "check_interval": "2m"}
	}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir, "config.json")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DataDir != "extracts" {
		t.Errorf("DataDir = %q, want extracts", cfg.DataDir)
	}
	if cfg.FillPolicy != "drop_row" {
		t.Errorf("FillPolicy = %q, want drop_row", cfg.FillPolicy)
	}
	if time.Duration(cfg.RefreshInterval) != 90*time.Second {
		t.Errorf("RefreshInterval = %v, want 90s", time.Duration(cfg.RefreshInterval))
	}
	if time.Duration(cfg.Email.CheckInterval) != 2*time.Minute {
		t.Errorf("CheckInterval = %v, want 2m", time.Duration(cfg.Email.CheckInterval))
	}
	// 缺省字段回落到默认值
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want default :8080", cfg.HTTPAddr)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir(), "nope.json"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateFillPolicy(t *testing.T) {
	cfg := Default()
	cfg.FillPolicy = "discard"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown fill_policy")
	}
}
