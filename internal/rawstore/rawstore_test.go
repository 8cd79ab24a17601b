package rawstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-collector/pkg/types"
)

func TestSaveWritesFileUnderSourceDir(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	doc := types.Document{ID: "PROJ-1", Content: "hello world"}
	require.NoError(t, store.Save(context.Background(), types.SourceJira, doc))

	path := filepath.Join(dir, "jira", "PROJ-1")
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestSaveSanitizesPathSeparators(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	doc := types.Document{ID: "a/b\\c:d", Content: "x"}
	require.NoError(t, store.Save(context.Background(), types.SourceGitHub, doc))

	path := filepath.Join(dir, "github", "a_b_c_d")
	_, err = os.Stat(path)
	require.NoError(t, err, "sanitized id must not escape baseDir via path separators")
}

func TestSaveEmptyIDFallsBackToUnderscore(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	doc := types.Document{ID: "", Content: "x"}
	require.NoError(t, store.Save(context.Background(), types.SourceSlack, doc))

	_, err = os.Stat(filepath.Join(dir, "slack", "_"))
	require.NoError(t, err)
}

func TestNewCreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "rawfiles")
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
