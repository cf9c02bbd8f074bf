package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadWritesFileAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "http://localhost:8080/files/")
	require.NoError(t, err)

	u, err := store.Upload(context.Background(), "orders/JOB-1/quote.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/files/orders/JOB-1/quote.pdf", u)

	data, err := os.ReadFile(filepath.Join(dir, "orders", "JOB-1", "quote.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "orders", "JOB-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestUploadStaysInsideDirectory(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "docs"), "/files")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "../../escape.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "docs", "escape.pdf"))
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), " ", "application/pdf", nil)
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	store, err := New(t.TempDir(), "/files")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "a/b.pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), "a/b.pdf"))
	require.NoError(t, store.Delete(context.Background(), "a/b.pdf"))
}

func TestNewRequiresDir(t *testing.T) {
	_, err := New("", "/files")
	require.Error(t, err)
}

func TestUploadHonorsCancelledContext(t *testing.T) {
	store, err := New(t.TempDir(), "/files")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Upload(ctx, "a.pdf", "application/pdf", nil)
	require.ErrorIs(t, err, context.Canceled)
}
