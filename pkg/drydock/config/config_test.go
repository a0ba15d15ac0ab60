package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InstallRoot != DefaultInstallRoot {
		t.Errorf("InstallRoot = %q, want %q", cfg.InstallRoot, DefaultInstallRoot)
	}
	if cfg.Engine != DefaultEngine {
		t.Errorf("Engine = %q, want %q", cfg.Engine, DefaultEngine)
	}
	if cfg.Catalog != "" {
		t.Errorf("Catalog = %q, want empty (built-in)", cfg.Catalog)
	}
	if cfg.Workers != 0 {
		t.Errorf("Workers = %d, want 0 (budget-derived)", cfg.Workers)
	}
	if cfg.Timeouts.PackageManager != DefaultPackageTimeout {
		t.Errorf("Timeouts.PackageManager = %v, want %v", cfg.Timeouts.PackageManager, DefaultPackageTimeout)
	}
	if cfg.Timeouts.ImageTransfer != DefaultImageTimeout {
		t.Errorf("Timeouts.ImageTransfer = %v, want %v", cfg.Timeouts.ImageTransfer, DefaultImageTimeout)
	}
	if cfg.Timeouts.StackStart != DefaultStackTimeout {
		t.Errorf("Timeouts.StackStart = %v, want %v", cfg.Timeouts.StackStart, DefaultStackTimeout)
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled = false, want true")
	}
	if cfg.Journal.RetentionDays != DefaultRetentionDays {
		t.Errorf("Journal.RetentionDays = %d, want %d", cfg.Journal.RetentionDays, DefaultRetentionDays)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", "drydock")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
install_root: /srv/stack
engine: podman
workers: 3
timeouts:
  package_manager: 20m
  stack_start: 90s
journal:
  enabled: false
  retention_days: 7
logging:
  level: debug
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InstallRoot != "/srv/stack" {
		t.Errorf("InstallRoot = %q, want %q", cfg.InstallRoot, "/srv/stack")
	}
	if cfg.Engine != "podman" {
		t.Errorf("Engine = %q, want %q", cfg.Engine, "podman")
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.Timeouts.PackageManager != 20*time.Minute {
		t.Errorf("Timeouts.PackageManager = %v, want 20m", cfg.Timeouts.PackageManager)
	}
	if cfg.Timeouts.StackStart != 90*time.Second {
		t.Errorf("Timeouts.StackStart = %v, want 90s", cfg.Timeouts.StackStart)
	}
	// Unset file keys keep their defaults.
	if cfg.Timeouts.ImageTransfer != DefaultImageTimeout {
		t.Errorf("Timeouts.ImageTransfer = %v, want default %v", cfg.Timeouts.ImageTransfer, DefaultImageTimeout)
	}
	if cfg.Journal.Enabled {
		t.Error("Journal.Enabled = true, want false")
	}
	if cfg.Journal.RetentionDays != 7 {
		t.Errorf("Journal.RetentionDays = %d, want 7", cfg.Journal.RetentionDays)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("DRYDOCK_ENGINE", "podman")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine != "podman" {
		t.Errorf("Engine = %q, want env override %q", cfg.Engine, "podman")
	}
}

func TestLoad_ExpandsTilde(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", "drydock")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := "output_dir: ~/bundles\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := filepath.Join(tempDir, "bundles")
	if cfg.OutputDir != want {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, want)
	}
}

func TestWriteDefault(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	if err := WriteDefault(); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	configPath := filepath.Join(tempDir, ".config", "drydock", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "install_root:") {
		t.Error("default config missing install_root key")
	}

	// Second call must not clobber an existing file.
	if err := os.WriteFile(configPath, []byte("engine: podman\n"), 0o644); err != nil {
		t.Fatalf("failed to overwrite config: %v", err)
	}
	if err := WriteDefault(); err != nil {
		t.Fatalf("WriteDefault() second call error = %v", err)
	}
	data, err = os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) != "engine: podman\n" {
		t.Error("WriteDefault() overwrote an existing config file")
	}
}

func TestExpandPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "tilde", in: "~/x", want: filepath.Join(tempDir, "x")},
		{name: "absolute untouched", in: "/opt/stack", want: "/opt/stack"},
		{name: "relative untouched", in: "bundles", want: "bundles"},
		{name: "empty untouched", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.in)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
