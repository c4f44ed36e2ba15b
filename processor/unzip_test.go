package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatiando/pooch"
	"github.com/fatiando/pooch/testutil"
)

var archiveFiles = map[string]string{
	"a.txt":       "alpha",
	"b.txt":       "bravo",
	"sub/c.txt":   "charlie",
	"sub/d/e.txt": "echo",
}

func TestUnzipAll(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.zip")
	testutil.Zip(t, archive, archiveFiles)

	u := &Unzip{}
	paths, err := u.Process(context.Background(), archive, pooch.Downloaded)
	require.NoError(t, err)

	extractDir := archive + ".unzip"
	assert.ElementsMatch(t, []string{
		filepath.Join(extractDir, "a.txt"),
		filepath.Join(extractDir, "b.txt"),
		filepath.Join(extractDir, "sub", "c.txt"),
		filepath.Join(extractDir, "sub", "d", "e.txt"),
	}, paths)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestUnzipMemberSubsetThenSuperset(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.zip")
	testutil.Zip(t, archive, archiveFiles)
	extractDir := archive + ".unzip"

	// First call extracts only the requested member.
	u := &Unzip{Members: []string{"a.txt"}}
	paths, err := u.Process(context.Background(), archive, pooch.Downloaded)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(extractDir, "a.txt")}, paths)
	_, err = os.Stat(filepath.Join(extractDir, "b.txt"))
	assert.True(t, os.IsNotExist(err), "unrequested members must not be extracted")

	// A later, wider request extracts the missing member without
	// re-extracting the present one, even though the source was cached.
	aInfo, err := os.Stat(filepath.Join(extractDir, "a.txt"))
	require.NoError(t, err)

	u = &Unzip{Members: []string{"a.txt", "b.txt"}}
	paths, err = u.Process(context.Background(), archive, pooch.Fetched)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(extractDir, "a.txt"),
		filepath.Join(extractDir, "b.txt"),
	}, paths)

	bContents, err := os.ReadFile(filepath.Join(extractDir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(bContents))

	aAfter, err := os.Stat(filepath.Join(extractDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, aInfo.ModTime(), aAfter.ModTime(), "present member must not be rewritten")
}

func TestUnzipDirectoryMember(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.zip")
	testutil.Zip(t, archive, archiveFiles)
	extractDir := archive + ".unzip"

	u := &Unzip{Members: []string{"sub"}}
	paths, err := u.Process(context.Background(), archive, pooch.Downloaded)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(extractDir, "sub", "c.txt"),
		filepath.Join(extractDir, "sub", "d", "e.txt"),
	}, paths)
}

func TestUnzipMissingMember(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.zip")
	testutil.Zip(t, archive, archiveFiles)

	u := &Unzip{Members: []string{"nope.txt"}}
	_, err := u.Process(context.Background(), archive, pooch.Downloaded)
	assert.ErrorContains(t, err, `no member "nope.txt"`)
}

func TestUnzipRefusesTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../escape.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("pwned"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o644))

	u := &Unzip{}
	_, err = u.Process(context.Background(), archive, pooch.Downloaded)
	var insecure *ErrInsecureArchivePath
	require.ErrorAs(t, err, &insecure)

	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUntar(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.tar")
	testutil.Tar(t, archive, archiveFiles)
	extractDir := archive + ".untar"

	u := &Untar{Members: []string{"sub/c.txt"}}
	paths, err := u.Process(context.Background(), archive, pooch.Downloaded)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(extractDir, "sub", "c.txt")}, paths)

	contents, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "charlie", string(contents))

	// Widening the request later extracts the rest.
	u = &Untar{}
	paths, err = u.Process(context.Background(), archive, pooch.Fetched)
	require.NoError(t, err)
	assert.Len(t, paths, len(archiveFiles))
}

func TestUntarExtractDirOption(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.tar")
	testutil.Tar(t, archive, map[string]string{"a.txt": "alpha"})

	target := filepath.Join(dir, "elsewhere")
	u := &Untar{ExtractDir: target}
	paths, err := u.Process(context.Background(), archive, pooch.Downloaded)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(target, "a.txt")}, paths)
}

func TestSecurePath(t *testing.T) {
	dir := t.TempDir()
	for _, bad := range []string{"../x", "..", "/etc/passwd", "a/../../x"} {
		_, err := securePath(dir, bad)
		assert.Error(t, err, bad)
	}
	got, err := securePath(dir, "a/./b.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a", "b.txt"), got)
}
