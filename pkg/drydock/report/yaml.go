package report

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// yamlOutput represents the full YAML output structure.
type yamlOutput struct {
	Operation   string          `yaml:"operation"`
	BuildHost   *ProfileInfo    `yaml:"build_host,omitempty"`
	TargetHost  *ProfileInfo    `yaml:"target_host,omitempty"`
	Budget      *BudgetInfo     `yaml:"budget,omitempty"`
	Bundle      *BundleInfo     `yaml:"bundle,omitempty"`
	Services    []ServiceStatus `yaml:"services,omitempty"`
	Stages      []yamlStage     `yaml:"stages,omitempty"`
	SecretsPath string          `yaml:"secrets_path,omitempty"`
	Warnings    []string        `yaml:"warnings,omitempty"`
	Failed      bool            `yaml:"failed"`
	Error       string          `yaml:"error,omitempty"`
	Duration    string          `yaml:"duration"`
}

// yamlStage represents a pipeline stage in YAML output.
type yamlStage struct {
	Name     string `yaml:"name"`
	Outcome  string `yaml:"outcome"`
	Detail   string `yaml:"detail,omitempty"`
	Duration string `yaml:"duration"`
}

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter but in YAML format.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(f.buildOutput(r)); err != nil {
		return err
	}
	return encoder.Close()
}

// buildOutput converts Result to the YAML output structure.
func (f *YAMLFormatter) buildOutput(r *Result) yamlOutput {
	stages := make([]yamlStage, len(r.Stages))
	for i, s := range r.Stages {
		stages[i] = yamlStage{
			Name:     s.Name,
			Outcome:  s.Outcome,
			Detail:   s.Detail,
			Duration: formatDurationString(s.Duration),
		}
	}
	if len(stages) == 0 {
		stages = nil
	}

	return yamlOutput{
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

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
