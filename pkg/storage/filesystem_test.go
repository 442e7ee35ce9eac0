package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("2024/cert-1.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "2024/cert-1.pdf", name)

	f, err := store.Open(name)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "%PDF", string(body))

	require.NoError(t, store.Delete(name))
	require.NoError(t, store.Delete(name))
	_, err = store.Open(name)
	assert.Error(t, err)
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.pdf", []byte("x"))
	assert.Error(t, err)
	_, err = store.Open("/etc/passwd")
	assert.Error(t, err)
}

func TestLocalStorageCleanupTempOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	stale := filepath.Join(dir, "stale.pdf.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.pdf.tmp"), []byte("x"), 0o644))
	_, err = store.Save("kept.pdf", []byte("x"))
	require.NoError(t, err)

	deleted, err := store.CleanupTempOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale.pdf.tmp"}, deleted)
	assert.FileExists(t, filepath.Join(dir, "kept.pdf"))
	assert.FileExists(t, filepath.Join(dir, "fresh.pdf.tmp"))
}
