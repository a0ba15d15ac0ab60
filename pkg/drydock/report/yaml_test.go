package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestYAMLFormatter_Format_InstallRun(t *testing.T) {
	formatter := &YAMLFormatter{}
	var buf bytes.Buffer

	err := formatter.Format(&buf, installResult())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "install", doc["operation"])

	budget, ok := doc["budget"].(map[string]any)
	require.True(t, ok, "budget section missing")
	assert.Equal(t, 2048, budget["db_memory_mb"])

	target, ok := doc["target_host"].(map[string]any)
	require.True(t, ok, "target_host section missing")
	assert.Equal(t, 4, target["cpu_cores"])
	assert.Equal(t, "debian 12", target["platform"])
}

func TestYAMLFormatter_Format_MatchesJSONStructure(t *testing.T) {
	var jsonBuf, yamlBuf bytes.Buffer

	require.NoError(t, (&JSONFormatter{}).Format(&jsonBuf, installResult()))
	require.NoError(t, (&YAMLFormatter{}).Format(&yamlBuf, installResult()))

	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))

	// Same top-level sections in both encodings.
	for _, key := range []string{"operation", "budget", "stages", "services", "duration"} {
		assert.Contains(t, fromYAML, key)
		assert.Contains(t, jsonBuf.String(), `"`+key+`"`)
	}
}
