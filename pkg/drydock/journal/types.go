// Package journal provides run logging for bundler and installer operations.
package journal

import "time"

// OperationType represents the type of operation.
type OperationType string

const (
	// OpBundle represents a bundle assembly run.
	OpBundle OperationType = "bundle"
	// OpInstall represents an offline install run.
	OpInstall OperationType = "install"
)

// Outcome represents how a run or stage ended.
type Outcome string

const (
	// OutcomeSucceeded marks a run or stage that completed.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed marks a run or stage that aborted.
	OutcomeFailed Outcome = "failed"
)

// Entry represents a single journal entry.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
	Host      string        `json:"host,omitempty"`
	Bundle    BundleRef     `json:"bundle"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Stages    []StageRecord `json:"stages,omitempty"`
	Summary   Summary       `json:"summary"`
}

// BundleRef identifies the bundle a run produced or consumed.
type BundleRef struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Platform  string `json:"platform,omitempty"` // os/arch, e.g. "linux/amd64"
	SHA256    string `json:"sha256,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// StageRecord represents one pipeline stage of an install run.
type StageRecord struct {
	Name       string  `json:"name"`
	Outcome    Outcome `json:"outcome"`
	Detail     string  `json:"detail,omitempty"` // e.g. "existing secrets reused"
	Error      string  `json:"error,omitempty"`
	DurationMS int64   `json:"duration_ms"`
}

// Summary contains run summary.
type Summary struct {
	StagesRun  int64 `json:"stages_run"`
	DurationMS int64 `json:"duration_ms"`
}
