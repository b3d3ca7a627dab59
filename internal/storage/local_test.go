package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := NewLocal(root)

	require.NoError(t, l.Write(ctx, "uploads/7/a.pdf", []byte("%PDF")))

	ok, err := l.Exists(ctx, "uploads/7/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := l.Read(ctx, "uploads/7/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	_, err = os.Stat(filepath.Join(root, "uploads", "7", "a.pdf"))
	assert.NoError(t, err)

	require.NoError(t, l.Delete(ctx, "uploads/7/a.pdf"))
	ok, err = l.Exists(ctx, "uploads/7/a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Delete(ctx, "uploads/7/a.pdf"))
}

func TestLocalReadMissing(t *testing.T) {
	l := NewLocal(t.TempDir())
	_, err := l.Read(context.Background(), "nope.pdf")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalKeysStayUnderRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := NewLocal(filepath.Join(root, "data"))

	require.NoError(t, l.Write(ctx, "../../escape.pdf", []byte("x")))
	_, err := os.Stat(filepath.Join(root, "data", "escape.pdf"))
	assert.NoError(t, err)

	assert.Error(t, l.Write(ctx, "/", []byte("x")))
}

func TestEnsureDirIsADirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := NewLocal(root)
	require.NoError(t, l.EnsureDir(ctx, "uploads/9"))

	ok, err := l.Exists(ctx, "uploads/9")
	require.NoError(t, err)
	assert.False(t, ok)
}
