// Package report provides formatters for displaying profiler, bundler and
// installer results in various output formats (pretty, plain, json, yaml).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := report.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package report

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Operation names used in Result.Operation.
const (
	OpProfile = "profile"
	OpBundle  = "bundle"
	OpInstall = "install"
)

// ProfileInfo describes a profiled machine.
type ProfileInfo struct {
	// Platform is the detected distribution, e.g. "ubuntu 24.04".
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`

	// CPUCores is the logical CPU count.
	CPUCores int `json:"cpu_cores" yaml:"cpu_cores"`

	// TotalMemoryMB is the total physical memory in MiB.
	TotalMemoryMB int `json:"total_memory_mb" yaml:"total_memory_mb"`
}

// BudgetInfo holds the derived resource budget.
type BudgetInfo struct {
	DBMemoryMB        int `json:"db_memory_mb" yaml:"db_memory_mb"`
	DBSharedBuffersMB int `json:"db_shared_buffers_mb" yaml:"db_shared_buffers_mb"`
	DBWorkMemMB       int `json:"db_work_mem_mb" yaml:"db_work_mem_mb"`
	RedisMemoryMB     int `json:"redis_memory_mb" yaml:"redis_memory_mb"`
	AppMemoryMB       int `json:"app_memory_mb" yaml:"app_memory_mb"`
	WorkerProcesses   int `json:"worker_processes" yaml:"worker_processes"`
}

// BundleInfo describes a produced or consumed bundle artifact.
type BundleInfo struct {
	// Name is the deployment name, e.g. "lanstack".
	Name string `json:"name" yaml:"name"`

	// Version is the bundle version.
	Version string `json:"version" yaml:"version"`

	// Platform is the target os/arch, e.g. "linux/amd64".
	Platform string `json:"platform" yaml:"platform"`

	// ArtifactPath is the tarball location.
	ArtifactPath string `json:"artifact_path,omitempty" yaml:"artifact_path,omitempty"`

	// SHA256 is the tarball checksum.
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`

	// SizeBytes is the tarball size.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`

	// Packages is the number of system packages included.
	Packages int `json:"packages" yaml:"packages"`

	// ImagesExported is the number of container images exported this run.
	ImagesExported int `json:"images_exported" yaml:"images_exported"`

	// ImagesCached is the number of image exports skipped as unchanged.
	ImagesCached int `json:"images_cached" yaml:"images_cached"`

	// Files is the number of files in the staging tree.
	Files int `json:"files" yaml:"files"`
}

// ServiceStatus is one row of the installed stack.
type ServiceStatus struct {
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image" yaml:"image"`
	State string `json:"state" yaml:"state"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// StageStatus is one pipeline stage of an install run.
type StageStatus struct {
	Name     string        `json:"name" yaml:"name"`
	Outcome  string        `json:"outcome" yaml:"outcome"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Result contains the complete output data for formatting. Sections not
// relevant to the operation stay nil and formatters skip them.
type Result struct {
	// Operation is one of OpProfile, OpBundle, OpInstall.
	Operation string `json:"operation" yaml:"operation"`

	// BuildHost is the machine the bundle was assembled on.
	BuildHost *ProfileInfo `json:"build_host,omitempty" yaml:"build_host,omitempty"`

	// TargetHost is the machine being profiled or installed to.
	TargetHost *ProfileInfo `json:"target_host,omitempty" yaml:"target_host,omitempty"`

	// Budget is the resource budget in effect.
	Budget *BudgetInfo `json:"budget,omitempty" yaml:"budget,omitempty"`

	// Bundle describes the artifact.
	Bundle *BundleInfo `json:"bundle,omitempty" yaml:"bundle,omitempty"`

	// Services lists the deployed stack, install runs only.
	Services []ServiceStatus `json:"services,omitempty" yaml:"services,omitempty"`

	// Stages lists pipeline stages, install runs only.
	Stages []StageStatus `json:"stages,omitempty" yaml:"stages,omitempty"`

	// SecretsPath is where generated credentials were written.
	SecretsPath string `json:"secrets_path,omitempty" yaml:"secrets_path,omitempty"`

	// Warnings contains non-fatal notices, e.g. profile divergence.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Failed indicates the run aborted; Error carries the cause.
	Failed bool   `json:"failed" yaml:"failed"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`

	// Duration is the total run time.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
