package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/drydock/pkg/drydock/logging"
)

// TestInit tests the Init function with various configurations.
// Note: This test cannot run in parallel with other tests that use global state.
func TestInit(t *testing.T) {
	validDir := t.TempDir()
	debugDir := t.TempDir()
	componentsDir := t.TempDir()
	invalidDir := t.TempDir()

	// A regular file where a directory is needed makes any path under it
	// unwritable, regardless of the uid the tests run as.
	blocker := filepath.Join(invalidDir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config with defaults",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(validDir, "test.log"),
			},
			wantErr: false,
		},
		{
			name: "valid config with debug level",
			cfg: logging.Config{
				Level: "debug",
				Path:  filepath.Join(debugDir, "debug.log"),
			},
			wantErr: false,
		},
		{
			name: "valid config with component overrides",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(componentsDir, "components.log"),
				Components: map[string]string{
					"bundle":    "debug",
					"installer": "warn",
				},
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			cfg: logging.Config{
				Level: "invalid",
				Path:  filepath.Join(validDir, "invalid.log"),
			},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(validDir, "comp.log"),
				Components: map[string]string{"bundle": "chatty"},
			},
			wantErr: true,
		},
		{
			name: "unwritable log path",
			cfg: logging.Config{
				Level: "info",
				Path:  filepath.Join(blocker, "nested", "test.log"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Note: No t.Parallel() - these tests modify global state

			err := logging.Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if err == nil {
				if closeErr := logging.Close(); closeErr != nil {
					t.Errorf("Close() error = %v", closeErr)
				}
			}
		})
	}
}

func TestGet_BeforeInitIsSilent(t *testing.T) {
	// Loggers obtained before Init must not panic and must stay silent.
	logger := logging.Get("preinit")
	logger.Info("this goes nowhere")
	logger.Error("so does this")
}

func TestLoggerWritesToFile(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "drydock.log")

	cfg := logging.Config{
		Level: "debug",
		Path:  logPath,
	}
	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logger := logging.Get("bundle")
	logger.Info("export complete", "image", "postgres:16-alpine")
	logger.Debug("cache hit", "ref", "redis:7-alpine")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "export complete") {
		t.Errorf("log file missing info message, got:\n%s", content)
	}
	if !strings.Contains(content, "postgres:16-alpine") {
		t.Errorf("log file missing structured field, got:\n%s", content)
	}
	if !strings.Contains(content, "bundle") {
		t.Errorf("log file missing component prefix, got:\n%s", content)
	}
}

func TestComponentLevelOverride(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "drydock.log")

	cfg := logging.Config{
		Level: "info",
		Path:  logPath,
		Components: map[string]string{
			"exec": "error",
		},
	}
	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("exec").Info("suppressed by component level")
	logging.Get("installer").Info("visible at default level")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)

	if strings.Contains(content, "suppressed by component level") {
		t.Error("component override did not suppress info message")
	}
	if !strings.Contains(content, "visible at default level") {
		t.Error("default-level message missing from log")
	}
}

func TestWith_AddsContext(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "drydock.log")

	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("installer").With("stage", "generate_secrets").Info("skipped")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "generate_secrets") {
		t.Errorf("With() context missing from log output:\n%s", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{in: "debug", want: logging.LevelDebug},
		{in: "info", want: logging.LevelInfo},
		{in: "WARN", want: logging.LevelWarn},
		{in: "warning", want: logging.LevelWarn},
		{in: "Error", want: logging.LevelError},
		{in: "verbose", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLevel(%q) = %v, want error", tt.in, got)
				}
				if !errors.Is(err, logging.ErrInvalidLevel) {
					t.Errorf("ParseLevel(%q) error = %v, want ErrInvalidLevel", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level logging.Level
		want  string
	}{
		{logging.LevelDebug, "debug"},
		{logging.LevelInfo, "info"},
		{logging.LevelWarn, "warn"},
		{logging.LevelError, "error"},
		{logging.Level(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}
