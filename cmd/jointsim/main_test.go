package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainScene = "../../config/testdata/chain.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", chainScene)
	require.NoError(t, err)
	assert.Contains(t, out, "ok, 3 bodies, 2 joints")

	_, err = execute(t, "validate", "testdata/missing.yaml")
	assert.Error(t, err)
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", chainScene)
	require.NoError(t, err)

	assert.Contains(t, out, "shoulder")
	assert.Contains(t, out, "elbow")
	assert.Contains(t, out, "2 color batches")
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", chainScene, "--steps", "10", "--print-every", "5", "--workers", "1", "--log-level", "warn")
	require.NoError(t, err)

	assert.Contains(t, out, "step 5 ")
	assert.Contains(t, out, "step 10 ")
	assert.Contains(t, out, "upper")
	assert.NotContains(t, out, "ceiling", "static bodies are not printed")
	assert.Contains(t, out, "done: 10 steps, 0 joints broken")
}

func TestRunCommandErrors(t *testing.T) {
	_, err := execute(t, "run", chainScene, "--dt", "0")
	assert.Error(t, err)

	_, err = execute(t, "run", chainScene, "--dt", "0.01", "--log-level", "loud")
	assert.Error(t, err)
}
