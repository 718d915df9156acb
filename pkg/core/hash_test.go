package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256Hasher_ChecksumFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	var h SHA256Hasher
	got, err := h.ChecksumFile(path)
	require.NoError(t, err)

	// echo -n "hello world" | sha256sum
	assert.Equal(t,
		"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		got.String())
	assert.True(t, got.IsValid())

	// 内存版本应该得到一致的结果 (内容寻址的基础)
	assert.Equal(t, got, ChecksumBytes([]byte("hello world")))
}

func TestSHA256Hasher_Deterministic(t *testing.T) {
	tmpDir := t.TempDir()

	// 同样的字节，不同的文件名 -> 必须得到同一个 Hash
	p1 := filepath.Join(tmpDir, "a.bin")
	p2 := filepath.Join(tmpDir, "b.bin")
	require.NoError(t, os.WriteFile(p1, []byte("same bytes"), 0644))
	require.NoError(t, os.WriteFile(p2, []byte("same bytes"), 0644))

	var h SHA256Hasher
	h1, err := h.ChecksumFile(p1)
	require.NoError(t, err)
	h2, err := h.ChecksumFile(p2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestSHA256Hasher_MissingFile(t *testing.T) {
	var h SHA256Hasher
	_, err := h.ChecksumFile(filepath.Join(t.TempDir(), "no-such-file"))
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
