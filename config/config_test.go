package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRequiresRemoteURL(t *testing.T) {
	t.Setenv("REMOTE_API_URL", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without remote API URL")
	}
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("REMOTE_API_URL", "https://example.com/exec")
	t.Setenv("EVENT_TITLE_PREFIX", "[Task] ")
	t.Setenv("OUTBOX_ENABLED", "true")
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RemoteAPIURL != "https://example.com/exec" {
		t.Errorf("RemoteAPIURL = %q", cfg.RemoteAPIURL)
	}
	if cfg.EventTitlePrefix != "[Task] " {
		t.Errorf("EventTitlePrefix = %q", cfg.EventTitlePrefix)
	}
	if !cfg.OutboxEnabled {
		t.Error("OutboxEnabled should be true")
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.OutboxWorkers != 2 {
		t.Errorf("default OutboxWorkers = %d, want 2", cfg.OutboxWorkers)
	}
	if !cfg.DiscoveryCleanup {
		t.Error("DiscoveryCleanup should default to true")
	}
}

func TestLoadDiscoveryCleanupCanBeDisabled(t *testing.T) {
	t.Setenv("REMOTE_API_URL", "https://example.com/exec")
	t.Setenv("DISCOVERY_CLEANUP", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscoveryCleanup {
		t.Error("DISCOVERY_CLEANUP=false must disable discovery cleanup")
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	body := []byte("remote_api_url: https://file.example/exec\ncalendar_api_url: https://cal.example/exec\ndeduper_ttl: 1h\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CALENDAR_API_URL", "https://env.example/exec")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RemoteAPIURL != "https://file.example/exec" {
		t.Errorf("RemoteAPIURL = %q", cfg.RemoteAPIURL)
	}
	if cfg.CalendarAPIURL != "https://env.example/exec" {
		t.Errorf("env must override file, got %q", cfg.CalendarAPIURL)
	}
	if cfg.DeduperTTL != time.Hour {
		t.Errorf("DeduperTTL = %v", cfg.DeduperTTL)
	}
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	t.Setenv("REMOTE_API_URL", "https://example.com/exec")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeadLetterQueue != "calendar-dead-letter" {
		t.Errorf("defaults not applied: %q", cfg.DeadLetterQueue)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	if err := os.WriteFile(path, []byte("remote_api_url: [broken"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
