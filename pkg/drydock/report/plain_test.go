package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainFormatter_Format_InstallRun(t *testing.T) {
	formatter := &PlainFormatter{}
	var buf bytes.Buffer

	err := formatter.Format(&buf, installResult())
	require.NoError(t, err)

	output := buf.String()

	assert.Contains(t, output, "operation")
	assert.Contains(t, output, "install")
	assert.Contains(t, output, "budget.db_memory_mb")
	assert.Contains(t, output, "2048")
	assert.Contains(t, output, "detect_host")
	assert.Contains(t, output, "succeeded")
	assert.Contains(t, output, "proxy")
	assert.Contains(t, output, "https://intra.lan")
	assert.Contains(t, output, "/opt/lanstack/secrets.env")

	// No ANSI escape sequences in plain output.
	assert.NotContains(t, output, "\x1b[")
}

func TestPlainFormatter_Format_BundleRun(t *testing.T) {
	formatter := &PlainFormatter{}
	var buf bytes.Buffer

	err := formatter.Format(&buf, bundleResult())
	require.NoError(t, err)

	output := buf.String()

	assert.Contains(t, output, "artifact")
	assert.Contains(t, output, "/out/lanstack-1.0.0-linux-amd64.tar.gz")
	assert.Contains(t, output, "sha256")
	assert.Contains(t, output, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08")
	assert.Contains(t, output, "3 exported")
	assert.Contains(t, output, "1 cached")
}

func TestPlainFormatter_Format_FailedRunHasErrorLine(t *testing.T) {
	formatter := &PlainFormatter{}
	var buf bytes.Buffer

	r := bundleResult()
	r.Failed = true
	r.Error = "required tool not found: docker"

	err := formatter.Format(&buf, r)
	require.NoError(t, err)

	output := buf.String()

	assert.Contains(t, output, "aborted")
	assert.Contains(t, output, "required tool not found: docker")

	// The result line precedes the error line.
	resultIdx := strings.Index(output, "result")
	errorIdx := strings.Index(output, "error")
	assert.Less(t, resultIdx, errorIdx)
}
