package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installResult builds a representative install run for formatter tests.
func installResult() *Result {
	return &Result{
		Operation: OpInstall,
		BuildHost: &ProfileInfo{
			Platform:      "ubuntu 24.04",
			CPUCores:      8,
			TotalMemoryMB: 16384,
		},
		TargetHost: &ProfileInfo{
			Platform:      "debian 12",
			CPUCores:      4,
			TotalMemoryMB: 8192,
		},
		Budget: &BudgetInfo{
			DBMemoryMB:        2048,
			DBSharedBuffersMB: 512,
			DBWorkMemMB:       20,
			RedisMemoryMB:     819,
			AppMemoryMB:       409,
			WorkerProcesses:   4,
		},
		Bundle: &BundleInfo{
			Name:     "lanstack",
			Version:  "1.0.0",
			Platform: "linux/amd64",
		},
		Services: []ServiceStatus{
			{Name: "proxy", Image: "nginx:1.27-alpine", State: "running", URL: "https://intra.lan"},
			{Name: "db", Image: "postgres:16-alpine", State: "running"},
			{Name: "cache", Image: "redis:7-alpine", State: "exited"},
		},
		Stages: []StageStatus{
			{Name: "detect_host", Outcome: "succeeded", Duration: 12 * time.Millisecond},
			{Name: "compute_budget", Outcome: "succeeded", Duration: time.Millisecond},
			{Name: "generate_secrets", Outcome: "succeeded", Detail: "existing secrets reused", Duration: 3 * time.Millisecond},
		},
		SecretsPath: "/opt/lanstack/secrets.env",
		Warnings:    []string{"target has less than half the build host memory"},
		Duration:    4*time.Minute + 12*time.Second,
	}
}

// bundleResult builds a representative bundle run for formatter tests.
func bundleResult() *Result {
	return &Result{
		Operation: OpBundle,
		BuildHost: &ProfileInfo{
			Platform:      "ubuntu 24.04",
			CPUCores:      8,
			TotalMemoryMB: 16384,
		},
		Bundle: &BundleInfo{
			Name:           "lanstack",
			Version:        "1.0.0",
			Platform:       "linux/amd64",
			ArtifactPath:   "/out/lanstack-1.0.0-linux-amd64.tar.gz",
			SHA256:         "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
			SizeBytes:      1 << 30,
			Packages:       9,
			ImagesExported: 3,
			ImagesCached:   1,
			Files:          42,
		},
		Duration: 90 * time.Second,
	}
}

type fakeFormatter struct{}

func (f *fakeFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(r.Operation)
	return nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register("fake", func() Formatter { return &fakeFormatter{} })

	formatter, err := registry.Get("fake")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, formatter.Format(&buf, &Result{Operation: OpProfile}))
	assert.Equal(t, OpProfile, buf.String())
}

func TestRegistry_GetUnknown(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown formatter")
}

func TestAvailable_IncludesBuiltins(t *testing.T) {
	names := Available()

	for _, want := range []string{"json", "plain", "pretty", "yaml"} {
		assert.Contains(t, names, want)
	}
	assert.IsIncreasing(t, names)
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{2 * time.Second, "2.0s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, formatDuration(tc.d))
	}
}
