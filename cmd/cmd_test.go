package cmd

import (
	"bytes"
	"encoding/json"
	"go/token"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/gnolang/boundprove/internal"
	"github.com/gnolang/boundprove/internal/metrics"
	tt "github.com/gnolang/boundprove/internal/types"
	"github.com/gnolang/boundprove/lint"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	lint.ProgressOutput = io.Discard
	os.Exit(m.Run())
}

func run(t *testing.T, s *session, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	more, err := s.exec(line)
	require.NoError(t, err, line)
	require.True(t, more, line)
	return out.String()
}

func TestSession(t *testing.T) {
	var out bytes.Buffer
	s := newSession(&out, zaptest.NewLogger(t))

	run(t, s, &out, "fact 0 <= i")
	run(t, s, &out, "fact i < n")
	assert.Equal(t, "proven\n", run(t, s, &out, "prove i < n"))
	assert.Equal(t, "proven\n", run(t, s, &out, "prove i <= n"))
	assert.Equal(t, "refuted\n", run(t, s, &out, "prove n <= i"))
	assert.Equal(t, "unknown\n", run(t, s, &out, "prove j < n"))
	assert.Equal(t, "i <= n - 1\n0 <= i\n", run(t, s, &out, ":facts"))

	run(t, s, &out, ":push")
	run(t, s, &out, "fact n <= 10")
	assert.Equal(t, "proven\n", run(t, s, &out, "prove i < 10"))
	run(t, s, &out, ":pop")
	assert.Equal(t, "unknown\n", run(t, s, &out, "prove i < 10"))

	run(t, s, &out, "let k = i")
	assert.Equal(t, "proven\n", run(t, s, &out, "prove k < n"))

	run(t, s, &out, "assume-not m < 0")
	assert.Equal(t, "proven\n", run(t, s, &out, "prove m >= 0"))

	assert.Equal(t, "i n j k m\n", run(t, s, &out, ":vars"))
	assert.Equal(t, "", run(t, s, &out, "   "))
}

func TestSessionErrors(t *testing.T) {
	var out bytes.Buffer
	s := newSession(&out, zap.NewNop())

	tests := []struct {
		line string
		msg  string
	}{
		{":pop", "no :push to pop"},
		{"bogus", `unknown command "bogus"`},
		{"fact", "missing expression"},
		{"prove i <", "parse"},
		{"let 1 = 2", "usage: let x = EXPR"},
		{"let x 2", "usage: let x = EXPR"},
	}
	for _, tc := range tests {
		more, err := s.exec(tc.line)
		assert.True(t, more, tc.line)
		require.Error(t, err, tc.line)
		assert.Contains(t, err.Error(), tc.msg, tc.line)
	}

	more, err := s.exec(":quit")
	require.NoError(t, err)
	assert.False(t, more)
}

func TestRunScript(t *testing.T) {
	var out bytes.Buffer
	s := newSession(&out, zap.NewNop())

	script := `# bounds of a loop counter
fact 0 <= i
fact i < len(s)
prove i < len(s)
:quit
prove never reached
`
	require.NoError(t, s.runScript(strings.NewReader(script)))
	assert.Equal(t, `prove> fact 0 <= i
prove> fact i < len(s)
prove> prove i < len(s)
proven
prove> :quit
`, out.String())

	err := newSession(&out, zap.NewNop()).runScript(strings.NewReader("fact 1\n:pop\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestComplete(t *testing.T) {
	s := newSession(io.Discard, zap.NewNop())
	assert.Equal(t, []string{":push", ":pop"}, s.complete(":p"))
	assert.Equal(t, []string{"prove "}, s.complete("pr"))
	assert.Empty(t, s.complete("x"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestHasErrors(t *testing.T) {
	assert.False(t, hasErrors(nil))
	assert.False(t, hasErrors([]tt.Issue{{Severity: tt.SeverityWarning}}))
	assert.True(t, hasErrors([]tt.Issue{{Severity: tt.SeverityWarning}, {Severity: tt.SeverityError}}))
}

const sample = `package main

func first(s []int) int {
	return s[0]
}

func sum(s []int) int {
	t := 0
	for i := range s {
		t += s[i]
	}
	return t
}
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.go")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	return path
}

func TestPrintIssues(t *testing.T) {
	path := writeSample(t)
	issues := []tt.Issue{{
		Rule:     "unproven-index",
		Filename: path,
		Message:  "cannot prove 0 < len(s)",
		Severity: tt.SeverityWarning,
		Start:    token.Position{Filename: path, Line: 4, Column: 9},
		End:      token.Position{Filename: path, Line: 4, Column: 13},
	}}

	var text bytes.Buffer
	require.NoError(t, printIssues(&text, zap.NewNop(), issues, false, ""))
	assert.Contains(t, text.String(), "warning: unproven-index")
	assert.Contains(t, text.String(), "4 | return s[0]")

	var js bytes.Buffer
	require.NoError(t, printIssues(&js, zap.NewNop(), issues, true, ""))
	var decoded map[string][]tt.Issue
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded[path], 1)
	assert.Equal(t, "cannot prove 0 < len(s)", decoded[path][0].Message)

	outFile := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, printIssues(io.Discard, zap.NewNop(), issues, true, outFile))
	written, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.JSONEq(t, js.String(), string(written))
}

func TestExplain(t *testing.T) {
	path := writeSample(t)
	engine, err := internal.NewEngine(".", nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, explain(&out, engine, path, "sum"))
	assert.Contains(t, out.String(), "func sum")
	assert.Contains(t, out.String(), "proven   i < len(s)")
	assert.NotContains(t, out.String(), "func first")

	out.Reset()
	require.NoError(t, explain(&out, engine, path, ""))
	assert.Contains(t, out.String(), "func first")
	assert.Contains(t, out.String(), "unproven 0 < len(s)")

	err = explain(&out, engine, path, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no function "missing"`)
}

func TestInitConfigurationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, initConfigurationFile(path))

	config, err := lint.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, lint.DefaultConfig(), config)
}

func TestWatchReporter(t *testing.T) {
	path := writeSample(t)
	var out bytes.Buffer
	report := newWatchReporter(&out)

	report(path, nil)
	assert.Equal(t, path+": no issues\n", out.String())

	out.Reset()
	report(path, []tt.Issue{{
		Rule:     "unproven-index",
		Filename: path,
		Message:  "cannot prove 0 < len(s)",
		Severity: tt.SeverityWarning,
		Start:    token.Position{Line: 4, Column: 9},
		End:      token.Position{Line: 4, Column: 13},
	}})
	assert.True(t, strings.HasPrefix(out.String(), path+": 1 issue(s)\n"))
	assert.Contains(t, out.String(), "cannot prove 0 < len(s)")
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	rec.FileAnalyzed()

	srv := httptest.NewServer(metricsHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "boundprove_files_analyzed_total 1")
}
