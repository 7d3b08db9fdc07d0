// cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webready/internal/observability"
)

// execute runs a fresh command tree with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	// Keep the working directory's webready.yaml, if any, out of the test.
	t.Chdir(t.TempDir())

	root, _ := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "webready version "+Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "readiness-aware waits")
	assert.Contains(t, out, "run")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "webready "+Version)
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "custom.yaml", `
wait:
  timeout: 3s
  interval: 25ms
driver:
  kind: webdriver
  webdriver_url: http://grid:4444/wd/hub
input:
  clear_policy: always
`)

	t.Run("env and flags override the file", func(t *testing.T) {
		observability.ResetForTest()
		t.Cleanup(observability.ResetForTest)
		t.Setenv("WEBREADY_WAIT_TIMEOUT", "7s")

		root, cfg := newRootCmd()
		run, _, err := root.Find([]string{"run"})
		require.NoError(t, err)
		run.RunE = func(*cobra.Command, []string) error { return nil }
		root.SetArgs([]string{"--config", cfgPath, "run", "--interval", "40ms", "x.yaml"})
		require.NoError(t, root.ExecuteContext(context.Background()))

		assert.Equal(t, 7*time.Second, cfg.Wait().Timeout, "environment beats the file")
		assert.Equal(t, 40*time.Millisecond, cfg.Wait().Interval, "flag beats the file")
		assert.Equal(t, "webdriver", cfg.Driver().Kind)
		assert.Equal(t, "http://grid:4444/wd/hub", cfg.Driver().WebDriverURL)
		assert.Equal(t, "always", cfg.Input().ClearPolicy)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.yaml", "driver:\n  kind: selenium-rc\n")
		_, err := execute(t, "--config", bad, "run", "x.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown kind "selenium-rc"`)
	})

	t.Run("named config file must exist", func(t *testing.T) {
		_, err := execute(t, "--config", filepath.Join(dir, "nope.yaml"), "run", "x.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}
