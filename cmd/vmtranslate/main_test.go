package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscoverUnitsSingleFileNamesSiblingAsm(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "Foo.vm", "")

	units, out, err := discoverUnits([]string{file})
	require.NoError(t, err)
	assert.Equal(t, []string{file}, units)
	assert.Equal(t, filepath.Join(dir, "Foo.asm"), out)
}

func TestDiscoverUnitsDirectoryNamesDirAsm(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Main.vm", "")
	writeFile(t, dir, "Sys.vm", "")
	writeFile(t, dir, "notes.txt", "ignored")

	units, out, err := discoverUnits([]string{dir})
	require.NoError(t, err)
	assert.Len(t, units, 2)
	assert.Equal(t, filepath.Join(filepath.Clean(dir), filepath.Base(filepath.Clean(dir))+".asm"), out)
}

func TestHandlerTranslatesSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Main.vm", "push constant 7\nreturn\n")

	code := handler([]string{filepath.Join(dir, "Main.vm")}, map[string]string{})
	require.Equal(t, 0, code)

	out, err := os.ReadFile(filepath.Join(dir, "Main.asm"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "@7")
}

func TestHandlerWithBootstrapPrependsStackInit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Sys.vm", "function Sys.init 0\npush constant 0\nreturn\n")

	code := handler([]string{filepath.Join(dir, "Sys.vm")}, map[string]string{"bootstrap": "true"})
	require.Equal(t, 0, code)

	out, err := os.ReadFile(filepath.Join(dir, "Sys.asm"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "@256")
}

func TestHandlerWithVerifyAcceptsWellFormedOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Main.vm", "push constant 7\nreturn\n")

	code := handler([]string{filepath.Join(dir, "Main.vm")}, map[string]string{"verify": "true"})
	assert.Equal(t, 0, code)
}
