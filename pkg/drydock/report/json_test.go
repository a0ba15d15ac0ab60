package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormatter_Format_InstallRun(t *testing.T) {
	formatter := &JSONFormatter{}
	var buf bytes.Buffer

	err := formatter.Format(&buf, installResult())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "install", doc["operation"])
	assert.Equal(t, "4m12s", doc["duration"])

	budget, ok := doc["budget"].(map[string]any)
	require.True(t, ok, "budget section missing")
	assert.Equal(t, float64(2048), budget["db_memory_mb"])
	assert.Equal(t, float64(4), budget["worker_processes"])

	stages, ok := doc["stages"].([]any)
	require.True(t, ok, "stages section missing")
	require.Len(t, stages, 3)
	first := stages[0].(map[string]any)
	assert.Equal(t, "detect_host", first["name"])
	assert.Equal(t, "succeeded", first["outcome"])
	assert.Equal(t, "12ms", first["duration"])

	services, ok := doc["services"].([]any)
	require.True(t, ok, "services section missing")
	assert.Len(t, services, 3)
}

func TestJSONFormatter_Format_BundleRun(t *testing.T) {
	formatter := &JSONFormatter{}
	var buf bytes.Buffer

	err := formatter.Format(&buf, bundleResult())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	bundle, ok := doc["bundle"].(map[string]any)
	require.True(t, ok, "bundle section missing")
	assert.Equal(t, "lanstack", bundle["name"])
	assert.Equal(t, float64(1<<30), bundle["size_bytes"])
	assert.Equal(t, float64(3), bundle["images_exported"])

	// Install-only sections are omitted entirely.
	assert.NotContains(t, doc, "stages")
	assert.NotContains(t, doc, "services")
	assert.NotContains(t, doc, "secrets_path")
}

func TestJSONFormatter_Format_OmitsEmptyError(t *testing.T) {
	formatter := &JSONFormatter{}
	var buf bytes.Buffer

	require.NoError(t, formatter.Format(&buf, bundleResult()))
	assert.NotContains(t, buf.String(), `"error"`)

	buf.Reset()
	r := bundleResult()
	r.Failed = true
	r.Error = "boom"
	require.NoError(t, formatter.Format(&buf, r))
	assert.Contains(t, buf.String(), `"error": "boom"`)
}
