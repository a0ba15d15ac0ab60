package report

import (
	"bytes"
	"encoding/json"
	"time"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Operation   string          `json:"operation"`
	BuildHost   *ProfileInfo    `json:"build_host,omitempty"`
	TargetHost  *ProfileInfo    `json:"target_host,omitempty"`
	Budget      *BudgetInfo     `json:"budget,omitempty"`
	Bundle      *BundleInfo     `json:"bundle,omitempty"`
	Services    []ServiceStatus `json:"services,omitempty"`
	Stages      []jsonStage     `json:"stages,omitempty"`
	SecretsPath string          `json:"secrets_path,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	Failed      bool            `json:"failed"`
	Error       string          `json:"error,omitempty"`
	Duration    string          `json:"duration"`
}

// jsonStage represents a pipeline stage in JSON output.
type jsonStage struct {
	Name     string `json:"name"`
	Outcome  string `json:"outcome"`
	Detail   string `json:"detail,omitempty"`
	Duration string `json:"duration"`
}

// JSONFormatter formats output as a single indented JSON object.
// It produces a complete JSON document mirroring the Result with
// durations rendered as strings.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.buildOutput(r))
}

// buildOutput converts Result to the JSON output structure.
func (f *JSONFormatter) buildOutput(r *Result) jsonOutput {
	stages := make([]jsonStage, len(r.Stages))
	for i, s := range r.Stages {
		stages[i] = jsonStage{
			Name:     s.Name,
			Outcome:  s.Outcome,
			Detail:   s.Detail,
			Duration: formatDurationString(s.Duration),
		}
	}
	if len(stages) == 0 {
		stages = nil
	}

	return jsonOutput{
		Operation:   r.Operation,
		BuildHost:   r.BuildHost,
		TargetHost:  r.TargetHost,
		Budget:      r.Budget,
		Bundle:      r.Bundle,
		Services:    r.Services,
		Stages:      stages,
		SecretsPath: r.SecretsPath,
		Warnings:    r.Warnings,
		Failed:      r.Failed,
		Error:       r.Error,
		Duration:    formatDurationString(r.Duration),
	}
}

// formatDurationString formats a duration as a string for structured
// output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
