package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveWritesUnderDir(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "https://cdn.example.com/files/")
	require.NoError(t, err)

	url, err := s.Save(context.Background(), "products/abc/main.jpg", strings.NewReader("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/files/products/abc/main.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "products", "abc", "main.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestSaveStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "")
	require.NoError(t, err)

	url, err := s.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/etc/passwd", url)
	_, err = os.Stat(filepath.Join(dir, "etc", "passwd"))
	assert.NoError(t, err)

	_, err = s.Save(context.Background(), "", strings.NewReader("x"), "")
	assert.Error(t, err)
}
