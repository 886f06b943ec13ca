package storage_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roadlens/trackmark/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAttachmentFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "attachments")

	ref, err := storage.SaveAttachmentFile(dir, []byte("jpeg"), "../../photo.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, "_photo.jpg"))
	assert.NotContains(t, ref, "..")

	data, err := os.ReadFile(filepath.Join(dir, ref))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	other, err := storage.SaveAttachmentFile(dir, []byte("jpeg"), "photo.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)
}

func TestSaveAttachmentFile_EmptyName(t *testing.T) {
	ref, err := storage.SaveAttachmentFile(t.TempDir(), nil, "  ")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, "_attachment"))
}
