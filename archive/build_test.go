package archive_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calder-west/stowage/archive"
	"github.com/calder-west/stowage/config"
	"github.com/calder-west/stowage/exporters"
	"github.com/calder-west/stowage/job"
	"github.com/calder-west/stowage/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, sources ...string) *config.ConfigFile {
	t.Helper()
	return &config.ConfigFile{
		DestinationDir: t.TempDir(),
		SourceDirs:     sources,
		ArchivePrefix:  "backup",
		RetentionCount: 5,
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestBuildProducesExtractableArchive(t *testing.T) {
	srcRoot := t.TempDir()
	srcA := filepath.Join(srcRoot, "src_a")
	writeFile(t, filepath.Join(srcA, "file.txt"), "ten bytes!")

	cfg := testConfig(t, srcA)
	jobctx := &job.JobContext{JobID: job.GenerateJobID()}

	archivePath, err := archive.Build(jobctx, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, cfg.DestinationDir, filepath.Dir(archivePath))
	_, ok := archive.ParseNameTime("backup", filepath.Base(archivePath))
	assert.True(t, ok, "archive name must follow the convention")

	entries, err := verify.ListEntries(archivePath, 0)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, filepath.Join("src_a", "file.txt"))

	for _, e := range entries {
		if e.Name == filepath.Join("src_a", "file.txt") {
			assert.Equal(t, int64(10), e.Size, "staged file keeps its byte size")
		}
	}
	assert.Greater(t, jobctx.CompressedSizeBytesInt, int64(0))
}

func TestBuildSkipsMissingSources(t *testing.T) {
	srcRoot := t.TempDir()
	srcA := filepath.Join(srcRoot, "src_a")
	writeFile(t, filepath.Join(srcA, "keep.txt"), "kept")

	cfg := testConfig(t, srcA, filepath.Join(srcRoot, "does_not_exist"))
	jobctx := &job.JobContext{JobID: job.GenerateJobID()}

	_, err := archive.Build(jobctx, cfg, nil)
	require.NoError(t, err, "a missing source never fails the run")
	assert.Equal(t, 1, jobctx.SourcesMissing)
	assert.Equal(t, 0, jobctx.SourcesFailed)
}

type failingExporter struct{ available bool }

func (f failingExporter) Name() string    { return "failing export" }
func (f failingExporter) Available() bool { return f.available }
func (f failingExporter) Export(stageDir string) error {
	return errors.New("tool blew up")
}

func TestBuildToleratesExporterFailure(t *testing.T) {
	srcRoot := t.TempDir()
	srcA := filepath.Join(srcRoot, "src_a")
	writeFile(t, filepath.Join(srcA, "keep.txt"), "kept")

	cfg := testConfig(t, srcA)
	jobctx := &job.JobContext{JobID: job.GenerateJobID()}

	exps := []exporters.Exporter{failingExporter{available: true}, failingExporter{available: false}}
	archivePath, err := archive.Build(jobctx, cfg, exps)
	require.NoError(t, err, "auxiliary failures never abort the backup")
	assert.Equal(t, 2, jobctx.AuxSkipped)
	assert.FileExists(t, archivePath)
}

func TestBuildLeavesNoPartialFile(t *testing.T) {
	srcRoot := t.TempDir()
	srcA := filepath.Join(srcRoot, "src_a")
	writeFile(t, filepath.Join(srcA, "keep.txt"), "kept")

	cfg := testConfig(t, srcA)
	jobctx := &job.JobContext{JobID: job.GenerateJobID()}

	_, err := archive.Build(jobctx, cfg, nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.DestinationDir)
	require.NoError(t, err)
	for _, ent := range entries {
		assert.False(t, strings.HasSuffix(ent.Name(), ".partial"), "no partial file may remain: %s", ent.Name())
	}
}

func TestBuildFailedPublishLeavesNoPartialFile(t *testing.T) {
	srcRoot := t.TempDir()
	srcA := filepath.Join(srcRoot, "src_a")
	writeFile(t, filepath.Join(srcA, "keep.txt"), "kept")

	cfg := testConfig(t, srcA)
	jobctx := &job.JobContext{JobID: job.GenerateJobID()}

	// a directory squats on every archive name this run could pick, so the
	// publishing rename cannot succeed
	now := time.Now()
	for i := -1; i <= 10; i++ {
		blocker := filepath.Join(cfg.DestinationDir, archive.Name("backup", now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, os.Mkdir(blocker, 0755))
	}

	_, err := archive.Build(jobctx, cfg, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(cfg.DestinationDir)
	require.NoError(t, err)
	for _, ent := range entries {
		assert.False(t, strings.HasSuffix(ent.Name(), ".partial"), "no partial file may remain: %s", ent.Name())
		if strings.HasSuffix(ent.Name(), ".tar.gz") {
			assert.True(t, ent.IsDir(), "the final name must never point at a half-published archive: %s", ent.Name())
		}
	}
}

func TestBuildReleasesWorkingArea(t *testing.T) {
	srcRoot := t.TempDir()
	srcA := filepath.Join(srcRoot, "src_a")
	writeFile(t, filepath.Join(srcA, "keep.txt"), "kept")

	cfg := testConfig(t, srcA)
	jobctx := &job.JobContext{JobID: job.GenerateJobID()}

	_, err := archive.Build(jobctx, cfg, nil)
	require.NoError(t, err)

	workRoot := filepath.Join(cfg.DestinationDir, "work")
	entries, _ := os.ReadDir(workRoot)
	assert.Empty(t, entries, "working area must be released after the run")
}
