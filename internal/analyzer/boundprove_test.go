package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/boundprove/internal/types"
)

const source = `package p

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

func TestAnalyzer(t *testing.T) {
	issues, err := tt.RunAnalyzer(source, Analyzer)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "boundprove", issues[0].Rule)
	assert.Equal(t, CategoryUnprovenIndex, issues[0].Category)
	assert.Equal(t, "cannot prove 0 < len(s)", issues[0].Message)
	assert.Equal(t, 4, issues[0].Start.Line)
	assert.Equal(t, 9, issues[0].Start.Column)

	assert.Equal(t, CategoryRedundantCondition, issues[1].Category)
	assert.Equal(t, "condition i < len(s) is always true", issues[1].Message)
	assert.Equal(t, 10, issues[1].Start.Line)
}

func TestAnalyzerComplexityFlag(t *testing.T) {
	require.NoError(t, Analyzer.Flags.Set("max-complexity", "1"))
	t.Cleanup(func() {
		_ = Analyzer.Flags.Set("max-complexity", "40")
	})

	issues, err := tt.RunAnalyzer(source, Analyzer)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, CategoryUnprovenIndex, issues[0].Category)
}

func TestGeneratedFilesAreSkipped(t *testing.T) {
	issues, err := tt.RunAnalyzer("// Code generated by hand. DO NOT EDIT.\n\n"+source, Analyzer)
	require.NoError(t, err)
	assert.Empty(t, issues)
}
