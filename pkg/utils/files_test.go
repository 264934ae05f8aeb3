package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestNextFreePath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a,b.rep")

	assert.Equal(t, target, NextFreePath(target))

	touch(t, target)
	assert.Equal(t, filepath.Join(dir, "a,b (2).rep"), NextFreePath(target))

	touch(t, filepath.Join(dir, "a,b (2).rep"))
	assert.Equal(t, filepath.Join(dir, "a,b (3).rep"), NextFreePath(target))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.rep")
	dst := filepath.Join(dir, "sub", "dst.rep")
	touch(t, src)
	require.NoError(t, MakeDir(filepath.Dir(dst)))

	require.NoError(t, MoveFile(src, dst))
	assert.False(t, FileExists(src))
	assert.True(t, IsRegularFile(dst))
}

func TestMoveFileRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.rep")
	dst := filepath.Join(dir, "dst.rep")
	touch(t, src)
	touch(t, dst)

	err := MoveFile(src, dst)
	assert.True(t, errors.Is(err, os.ErrExist))
	assert.True(t, FileExists(src))
}

func TestRemoveDirIfEmpty(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	empty := filepath.Join(dir, "empty")
	touch(t, filepath.Join(full, "f"))
	require.NoError(t, MakeDir(empty))

	require.NoError(t, RemoveDirIfEmpty(full))
	require.NoError(t, RemoveDirIfEmpty(empty))

	assert.True(t, IsDir(full))
	assert.False(t, FileExists(empty))
}

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsUUID(a))
	assert.False(t, IsUUID("not-a-uuid"))
}
