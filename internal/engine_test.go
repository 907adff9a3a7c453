package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnolang/boundprove/internal/boundscheck"
	"github.com/gnolang/boundprove/internal/metrics"
	tt "github.com/gnolang/boundprove/internal/types"
)

// createTempDir creates a temporary directory and returns its path.
func createTempDir(t testing.TB, prefix string) string {
	tempDir, err := os.MkdirTemp("", prefix)
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return tempDir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const engineSample = `package main

func first(s []int) int {
	return s[0]
}

func sum(s []int) int {
	t := 0
	for i := range s {
		if i < len(s) {
			t += s[i]
		}
	}
	return t
}
`

func TestNewEngine(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(".", nil)
	require.NoError(t, err)

	var names []string
	for _, r := range engine.Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"redundant-condition", "unproven-index"}, names)
	assert.Equal(t, RuleNames(), names)
}

func TestNewEngineUnknownRule(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(".", map[string]tt.ConfigRule{"no-such-rule": {Severity: tt.SeverityError}})
	assert.ErrorContains(t, err, `unknown rule "no-such-rule"`)
}

func TestRunSource(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(".", nil, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	issues, err := engine.RunSource([]byte(engineSample))
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "unproven-index", issues[0].Rule)
	assert.Equal(t, "cannot prove 0 < len(s)", issues[0].Message)
	assert.Equal(t, tt.SeverityWarning, issues[0].Severity)
	assert.Equal(t, 4, issues[0].Start.Line)
	assert.Equal(t, "nothing is known about the operands here", issues[0].Note)

	assert.Equal(t, "redundant-condition", issues[1].Rule)
	assert.Equal(t, "condition i < len(s) is always true", issues[1].Message)
	assert.Equal(t, tt.SeverityError, issues[1].Severity)
	assert.Equal(t, 10, issues[1].Start.Line)
	assert.Contains(t, issues[1].Facts, "0 <= i")
}

func TestRuleSeverities(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(".", map[string]tt.ConfigRule{
		"unproven-index":      {Severity: tt.SeverityInfo},
		"redundant-condition": {Severity: tt.SeverityOff},
	})
	require.NoError(t, err)

	issues, err := engine.RunSource([]byte(engineSample))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "unproven-index", issues[0].Rule)
	assert.Equal(t, tt.SeverityInfo, issues[0].Severity)
}

func TestIgnoreRule(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(".", nil)
	require.NoError(t, err)
	engine.IgnoreRule("unproven-index")

	issues, err := engine.RunSource([]byte(engineSample))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "redundant-condition", issues[0].Rule)
}

func TestNolintFiltering(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(".", nil)
	require.NoError(t, err)

	issues, err := engine.RunSource([]byte(`package main

func first(s []int) int {
	return s[0] //nolint:unproven-index
}

//nolint
func second(s []int) int {
	return s[1]
}

func third(s []int) int {
	return s[2]
}
`))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "cannot prove 2 < len(s)", issues[0].Message)
}

func TestRunFileAndIgnorePath(t *testing.T) {
	t.Parallel()

	dir := createTempDir(t, "engine_test")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "vendor"), 0o755))
	kept := writeFile(t, dir, "a.go", engineSample)
	skipped := writeFile(t, dir, filepath.Join("vendor", "b.go"), engineSample)
	generated := writeFile(t, dir, "c_gen.go", engineSample)

	engine, err := NewEngine(dir, nil)
	require.NoError(t, err)
	engine.IgnorePath("vendor")
	engine.IgnorePath("*_gen.go")

	issues, err := engine.Run(kept)
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	assert.Equal(t, kept, issues[0].Filename)

	for _, path := range []string{skipped, generated} {
		issues, err := engine.Run(path)
		require.NoError(t, err)
		assert.Empty(t, issues, path)
	}

	_, err = engine.Run(filepath.Join(dir, "missing.go"))
	assert.Error(t, err)
}

func TestParseError(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(".", nil)
	require.NoError(t, err)
	_, err = engine.RunSource([]byte("package main\nfunc {"))
	assert.ErrorContains(t, err, "error parsing file")
}

func TestUnresolvedImportsAreTolerated(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(".", nil)
	require.NoError(t, err)
	issues, err := engine.RunSource([]byte(`package main

import "example.com/does/not/exist"

func f(s []int) int {
	for i := range s {
		_ = exist.Value(s[i])
	}
	return 0
}
`))
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestRecorderAndProverConfig(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	engine, err := NewEngine(".", nil,
		WithRecorder(rec),
		WithProverConfig(boundscheck.Config{MaxComplexity: 1}))
	require.NoError(t, err)

	issues, err := engine.RunSource([]byte(engineSample))
	require.NoError(t, err)
	// sum is above the complexity limit
	require.Len(t, issues, 1)
	assert.Equal(t, "unproven-index", issues[0].Rule)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Files))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Proofs.WithLabelValues("unproven")))
}

func TestCachedRun(t *testing.T) {
	t.Parallel()

	dir := createTempDir(t, "engine_cache")
	path := writeFile(t, dir, "a.go", engineSample)

	cache, err := NewCache(filepath.Join(dir, ".cache"), "v1")
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	engine, err := NewEngine(dir, nil, WithCache(cache), WithRecorder(rec))
	require.NoError(t, err)

	first, err := engine.Run(path)
	require.NoError(t, err)
	second, err := engine.Run(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Files))

	writeFile(t, dir, "a.go", "package main\n")
	third, err := engine.Run(path)
	require.NoError(t, err)
	assert.Empty(t, third)
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Files))
}

func TestExplain(t *testing.T) {
	t.Parallel()

	dir := createTempDir(t, "engine_explain")
	path := writeFile(t, dir, "a.go", engineSample)

	engine, err := NewEngine(dir, nil)
	require.NoError(t, err)

	res, fset, err := engine.Explain(path)
	require.NoError(t, err)
	require.NotNil(t, fset)

	sum, ok := res.Func("sum")
	require.True(t, ok)
	require.Len(t, sum.Obligations, 2)
	for _, ob := range sum.Obligations {
		assert.True(t, ob.Proven, ob.Goal)
		assert.NotEmpty(t, ob.Facts, ob.Goal)
	}

	_, _, err = engine.Explain(filepath.Join(dir, "missing.go"))
	assert.Error(t, err)
}
