package lint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/boundprove/internal/types"
)

func writeSources(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		content := fmt.Sprintf(`package main

func f%d(s []int) int {
	return s[%d]
}
`, i, i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%d.go", i)), []byte(content), 0o644))
	}
}

func TestProcessPathContextCancellation(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	writeSources(t, tempDir, 10)

	engine, err := New(tempDir, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	issues, err := ProcessPath(ctx, nil, engine, tempDir, ProcessFile)

	assert.ErrorIs(t, err, context.Canceled)
	// partial results are still returned
	assert.NotNil(t, issues)
}

func TestProcessPathWithEngine(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	writeSources(t, tempDir, 5)

	engine, err := New(tempDir, "", nil)
	require.NoError(t, err)

	issues, err := ProcessPath(context.Background(), nil, engine, tempDir, ProcessFile)
	require.NoError(t, err)
	require.Len(t, issues, 5)
	for i, issue := range issues {
		assert.Equal(t, filepath.Join(tempDir, fmt.Sprintf("f%d.go", i)), issue.Filename)
		assert.Equal(t, fmt.Sprintf("cannot prove %d < len(s)", i), issue.Message)
		assert.Equal(t, tt.SeverityWarning, issue.Severity)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("missing file gives defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(dir, "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("partial file overrides defaults", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
rules:
  unproven-index:
    severity: off
prover:
  max-complexity: 5
`), 0o644))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "boundprove", cfg.Name)
		assert.Equal(t, tt.SeverityOff, cfg.Rules["unproven-index"].Severity)
		assert.Equal(t, tt.SeverityError, cfg.Rules["redundant-condition"].Severity)
		assert.Equal(t, 5, cfg.Prover.MaxComplexity)
		assert.True(t, cfg.Prover.CheckSlices)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("bad severity", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rules:\n  unproven-index: {severity: loud}\n"), 0o644))
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "unknown severity")
	})
}

func TestWriteConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigPath)
	require.NoError(t, WriteConfig(path, DefaultConfig()))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, DefaultConfig().Fingerprint(), cfg.Fingerprint())
}

func TestConfiguredEngine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigPath)
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  unproven-index: {severity: off}\n"), 0o644))

	engine, err := New(dir, path, nil)
	require.NoError(t, err)
	issues, err := engine.RunSource([]byte("package p\n\nfunc f(s []int) int { return s[0] }\n"))
	require.NoError(t, err)
	assert.Empty(t, issues)
}
