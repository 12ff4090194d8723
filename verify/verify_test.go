package verify

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writes a small but valid tar.gz fixture
func makeArchive(t *testing.T, dir string, payload string) string {
	t.Helper()
	archivePath := filepath.Join(dir, "backup_20240501_120000.tar.gz")

	f, err := os.Create(archivePath)
	require.NoError(t, err)
	gzWriter := gzip.NewWriter(f)
	tarWriter := tar.NewWriter(gzWriter)

	require.NoError(t, tarWriter.WriteHeader(&tar.Header{
		Name:     "src_a/file.txt",
		Mode:     0644,
		Size:     int64(len(payload)),
		Typeflag: tar.TypeReg,
	}))
	_, err = tarWriter.Write([]byte(payload))
	require.NoError(t, err)

	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzWriter.Close())
	require.NoError(t, f.Close())
	return archivePath
}

func TestVerifyBootstrapsChecksumRecord(t *testing.T) {
	archivePath := makeArchive(t, t.TempDir(), "hello archive")

	require.NoError(t, Verify(archivePath))
	assert.FileExists(t, SidecarPath(archivePath), "first verification records a checksum")
}

func TestVerifyIsIdempotent(t *testing.T) {
	archivePath := makeArchive(t, t.TempDir(), "hello archive")

	require.NoError(t, Verify(archivePath))
	first, err := os.ReadFile(SidecarPath(archivePath))
	require.NoError(t, err)

	require.NoError(t, Verify(archivePath))
	second, err := os.ReadFile(SidecarPath(archivePath))
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-verification must not alter the record")
}

func TestVerifyDetectsTruncation(t *testing.T) {
	archivePath := makeArchive(t, t.TempDir(), "hello archive")
	require.NoError(t, Verify(archivePath))

	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(archivePath, info.Size()/2))

	err = Verify(archivePath)
	require.Error(t, err, "a truncated archive must never verify Ok")
	assert.True(t, errors.Is(err, ErrCorruptArchive) || errors.Is(err, ErrChecksumMismatch),
		"got %v, want corrupt-archive or checksum-mismatch", err)
}

func TestVerifyDetectsContentSwap(t *testing.T) {
	dir := t.TempDir()
	archivePath := makeArchive(t, dir, "original contents")
	require.NoError(t, Verify(archivePath))

	// replace with a different but structurally valid archive
	replacement := makeArchive(t, t.TempDir(), "tampered contents!")
	data, err := os.ReadFile(replacement)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(archivePath, data, 0644))

	err = Verify(archivePath)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestVerifyMissingArchive(t *testing.T) {
	err := Verify(filepath.Join(t.TempDir(), "absent.tar.gz"))
	assert.ErrorIs(t, err, ErrNotReadable)
}

func TestListEntriesBoundsPreview(t *testing.T) {
	archivePath := makeArchive(t, t.TempDir(), "hello archive")

	entries, err := ListEntries(archivePath, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "src_a/file.txt", entries[0].Name)
}

func TestUncompressedSize(t *testing.T) {
	archivePath := makeArchive(t, t.TempDir(), "twelve bytes")

	total, err := UncompressedSize(archivePath)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
}
