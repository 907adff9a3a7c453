package internal

import (
	"go/token"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/boundprove/internal/types"
)

func sampleIssues() []tt.Issue {
	return []tt.Issue{
		{
			Rule:     "unproven-index",
			Category: "bounds",
			Filename: "test.go",
			Message:  "cannot prove i < len(s)",
			Note:     "known here: 0 <= i",
			Facts:    []string{"0 <= i"},
			Severity: tt.SeverityWarning,
			Start:    token.Position{Filename: "test.go", Offset: 40, Line: 4, Column: 9},
			End:      token.Position{Filename: "test.go", Offset: 44, Line: 4, Column: 13},
		},
	}
}

func TestCache(t *testing.T) {
	t.Parallel()

	tmpDir := createTempDir(t, "cache-test")
	cacheDir := filepath.Join(tmpDir, "cache")
	content := []byte("package main\n\nfunc main() {}\n")

	cache, err := NewCache(cacheDir, "v1")
	require.NoError(t, err)

	t.Run("NotFound", func(t *testing.T) {
		_, found := cache.Get("nonexistent.go", content)
		assert.False(t, found)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set("a.go", content, sampleIssues()))
		issues, found := cache.Get("a.go", content)
		require.True(t, found)
		assert.Equal(t, sampleIssues(), issues)
	})

	t.Run("ContentChanged", func(t *testing.T) {
		require.NoError(t, cache.Set("b.go", content, sampleIssues()))
		_, found := cache.Get("b.go", append(content, '\n'))
		assert.False(t, found)
		// the stale entry is dropped
		_, found = cache.Get("b.go", content)
		assert.False(t, found)
	})
}

func TestCachePersistence(t *testing.T) {
	t.Parallel()

	cacheDir := filepath.Join(createTempDir(t, "cache-persist"), "cache")
	content := []byte("package p\n")

	first, err := NewCache(cacheDir, "v1")
	require.NoError(t, err)
	require.NoError(t, first.Set("a.go", content, sampleIssues()))
	_, err = os.Stat(filepath.Join(cacheDir, cacheFileName))
	require.NoError(t, err)

	reopened, err := NewCache(cacheDir, "v1")
	require.NoError(t, err)
	issues, found := reopened.Get("a.go", content)
	require.True(t, found)
	assert.Equal(t, sampleIssues(), issues)

	// another configuration starts from scratch
	other, err := NewCache(cacheDir, "v2")
	require.NoError(t, err)
	assert.Equal(t, 0, other.Len())
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	cache, err := NewCache(filepath.Join(createTempDir(t, "cache-expiry"), "cache"), "")
	require.NoError(t, err)
	content := []byte("package p\n")

	require.NoError(t, cache.Set("a.go", content, nil))
	cache.SetMaxAge(time.Nanosecond)
	time.Sleep(time.Millisecond)
	_, found := cache.Get("a.go", content)
	assert.False(t, found)
}

func TestCacheInvalidateAll(t *testing.T) {
	t.Parallel()

	cacheDir := filepath.Join(createTempDir(t, "cache-invalidate"), "cache")
	cache, err := NewCache(cacheDir, "")
	require.NoError(t, err)
	require.NoError(t, cache.Set("a.go", []byte("x"), nil))
	require.NoError(t, cache.Set("b.go", []byte("y"), nil))
	assert.Equal(t, 2, cache.Len())

	require.NoError(t, cache.InvalidateAll())
	assert.Equal(t, 0, cache.Len())

	reopened, err := NewCache(cacheDir, "")
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}

func TestCorruptCache(t *testing.T) {
	t.Parallel()

	cacheDir := createTempDir(t, "cache-corrupt")
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, cacheFileName), []byte("not gob"), 0o644))
	_, err := NewCache(cacheDir, "")
	assert.ErrorContains(t, err, "failed to decode cache file")
}
