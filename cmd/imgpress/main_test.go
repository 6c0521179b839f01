package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	pterm.DisableStyling()
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_BACKEND", "")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeInput(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func originals(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !models.IsCompressed(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestCompressListStatsExport(t *testing.T) {
	store := t.TempDir()
	inputs := t.TempDir()
	photo := writeInput(t, inputs, "holiday.png", testutil.PNG(t, 1200, 600))

	out, _, err := run(t, "compress", "--dir", store, photo)
	require.NoError(t, err)
	assert.Contains(t, out, "holiday.png")
	assert.Contains(t, out, "800x400")

	ids := originals(t, store)
	require.Len(t, ids, 1)
	id := ids[0]

	out, _, err = run(t, "list", "--dir", store)
	require.NoError(t, err)
	assert.Contains(t, out, models.CompressedName(id))
	assert.Contains(t, out, "/uploads/"+models.CompressedName(id))

	out, _, err = run(t, "stats", "--dir", store)
	require.NoError(t, err)
	assert.Contains(t, out, "Total images: 1")
	assert.Contains(t, out, "Recent activity")

	out, _, err = run(t, "export", "--dir", store, id, "-")
	require.NoError(t, err)
	w, h, format := testutil.Dimensions(t, []byte(out))
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)

	dest := t.TempDir()
	_, _, err = run(t, "export", "--dir", store, id, dest)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, models.CompressedName(id)))
	assert.NoError(t, err)

	_, _, err = run(t, "export", "--dir", store, id, dest)
	assert.Error(t, err, "existing files are not overwritten")
}

func TestCompressReportsFailures(t *testing.T) {
	store := t.TempDir()
	inputs := t.TempDir()
	good := writeInput(t, inputs, "ok.jpg", testutil.JPEG(t, 100, 100, 90))
	bad := writeInput(t, inputs, "readme.txt", []byte("not an image"))

	out, errOut, err := run(t, "compress", "--dir", store, good, bad, filepath.Join(inputs, "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 files failed")
	assert.Contains(t, out, "ok.jpg")
	assert.Contains(t, errOut, "readme.txt")
	assert.Contains(t, errOut, "missing.png")
}

func TestFlagsOverrideConfig(t *testing.T) {
	store := t.TempDir()
	photo := writeInput(t, t.TempDir(), "wide.png", testutil.PNG(t, 400, 200))

	out, _, err := run(t, "compress", "--dir", store, "--max-width", "100", "--quality", "50", photo)
	require.NoError(t, err)
	assert.Contains(t, out, "100x50")

	_, _, err = run(t, "list", "--dir", store, "--quality", "101")
	assert.Error(t, err)
}

func TestEmptyStore(t *testing.T) {
	store := t.TempDir()

	out, _, err := run(t, "list", "--dir", store)
	require.NoError(t, err)
	assert.Equal(t, "No images", strings.TrimSpace(out))

	out, _, err = run(t, "stats", "--dir", store)
	require.NoError(t, err)
	assert.Contains(t, out, "Total images: 0")
	assert.NotContains(t, out, "Recent activity")

	_, _, err = run(t, "export", "--dir", store, "nothing.jpg", "-")
	assert.Error(t, err)
}
