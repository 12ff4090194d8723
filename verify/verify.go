package verify

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/calder-west/stowage/logger"
)

// verification failure taxonomy
var (
	ErrNotReadable      = errors.New("archive not readable")
	ErrCorruptArchive   = errors.New("archive is corrupt")
	ErrChecksumMismatch = errors.New("archive checksum mismatch")
)

// Entry summarizes one archive member for previews and size accounting.
type Entry struct {
	Name string
	Size int64
}

// Verify validates archive soundness, short-circuiting on the first failure:
// readability, then structural listing, then checksum comparison. When no
// checksum sidecar exists yet one is recorded instead of failing, so the
// first verification bootstraps the record and later runs detect divergence.
// A failing archive is only ever reported, never deleted or repaired.
func Verify(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReadable, err)
	}
	f.Close()

	// structural listing without extracting payload to disk
	if _, err := ListEntries(archivePath, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	sidecar := SidecarPath(archivePath)
	recorded, err := readSidecar(sidecar)
	if os.IsNotExist(err) {
		// first verification, persist the checksum record
		digest, err := DigestFile(archivePath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotReadable, err)
		}
		if err := writeSidecar(sidecar, digest, filepath.Base(archivePath)); err != nil {
			return fmt.Errorf("failed to write checksum record: %v", err)
		}
		logger.LogxWithFields("info", fmt.Sprintf("Recorded checksum for %s", filepath.Base(archivePath)), map[string]interface{}{
			"package": "verify",
			"archive": filepath.Base(archivePath),
			"sha256":  digest,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read checksum record: %v", err)
	}

	digest, err := DigestFile(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReadable, err)
	}
	if digest != recorded {
		logger.LogxWithFields("error", fmt.Sprintf("Checksum mismatch on %s", filepath.Base(archivePath)), map[string]interface{}{
			"package":  "verify",
			"archive":  filepath.Base(archivePath),
			"expected": recorded,
			"actual":   digest,
		})
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, recorded, digest)
	}

	return nil
}

// ListEntries walks the archive structure reading every member through to
// EOF, which surfaces truncation and gzip/tar corruption without writing any
// payload out. A limit of 0 lists everything.
func ListEntries(archivePath string, limit int) ([]Entry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gzReader, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip open failed: %v", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	var entries []Entry
	for {
		hdr, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tar read failed: %v", err)
		}

		if limit <= 0 || len(entries) < limit {
			entries = append(entries, Entry{Name: hdr.Name, Size: hdr.Size})
		}

		// drain payload to validate the stream end to end
		if _, err := io.Copy(io.Discard, tarReader); err != nil {
			return nil, fmt.Errorf("tar payload read failed: %v", err)
		}
	}
	return entries, nil
}

// UncompressedSize sums the uncompressed byte sizes of all archive entries.
func UncompressedSize(archivePath string) (int64, error) {
	entries, err := ListEntries(archivePath, 0)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total, nil
}

// SidecarPath returns the checksum record path for an archive.
func SidecarPath(archivePath string) string {
	return archivePath + ".sha256"
}

// DigestFile streams the archive through sha256.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// sidecar uses the standard checksum-tool format: "<digest>  <filename>\n"
func writeSidecar(sidecarPath, digest, archiveName string) error {
	return os.WriteFile(sidecarPath, []byte(fmt.Sprintf("%s  %s\n", digest, archiveName)), 0644)
}

func readSidecar(sidecarPath string) (string, error) {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 || len(fields[0]) != sha256.Size*2 {
		return "", fmt.Errorf("malformed checksum record %s", sidecarPath)
	}
	return fields[0], nil
}
