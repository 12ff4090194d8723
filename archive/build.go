package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/calder-west/stowage/config"
	"github.com/calder-west/stowage/exporters"
	"github.com/calder-west/stowage/job"
	"github.com/calder-west/stowage/logger"
)

// debug level logging output fields for archive package
func archiveLogBaseFields(jobctx *job.JobContext) map[string]interface{} {
	coreFields := logger.CoreLogFields(jobctx, "archive")
	fields := logger.MergeFields(coreFields, map[string]interface{}{
		"destination": jobctx.DestinationDir,
	})
	return fields
}

// Build stages aux exports plus every existing source into a fresh working
// area, then compresses the lot into one timestamped archive under the
// destination. Per-item failures are logged and skipped; only the final
// compression step is fatal. The archive is published to its final name via
// rename after compression fully succeeds, so a half-written file never sits
// at the destination path.
//
// A nil error means the returned archive is well-formed and extractable; it
// does NOT guarantee completeness when individual copies failed. Callers
// inspect jobctx.SourcesFailed and the run log for per-item failures.
func Build(jobctx *job.JobContext, cfg *config.ConfigFile, exps []exporters.Exporter) (string, error) {

	verboseFields := archiveLogBaseFields(jobctx)

	// allocate fresh working area & guarantee removal on all paths
	workArea, err := NewWorkingArea(cfg.DestinationDir, jobctx.JobID)
	if err != nil {
		return "", fmt.Errorf("failed to allocate working area: %v", err)
	}
	defer workArea.Release()

	logger.LogxWithFields("debug", fmt.Sprintf("Staging backup contents in %s", workArea.Path), verboseFields)

	// stage auxiliary exports, each one is best-effort
	for _, exp := range exps {
		if !exp.Available() {
			jobctx.AuxSkipped++
			logger.LogxWithFields("warn", fmt.Sprintf("Skipping %s export, tool not available on host", exp.Name()), verboseFields)
			continue
		}
		if err := exp.Export(workArea.Path); err != nil {
			jobctx.AuxSkipped++
			logger.LogxWithFields("warn", fmt.Sprintf("Skipping %s export: %v", exp.Name(), err), verboseFields)
			continue
		}
		logger.LogxWithFields("debug", fmt.Sprintf("Staged %s export", exp.Name()), verboseFields)
	}

	// stage each existing source, copy failures are logged and skipped
	jobctx.SourcesTotal = len(cfg.SourceDirs)
	for _, sourceDir := range cfg.SourceDirs {
		if _, err := os.Stat(sourceDir); err != nil {
			jobctx.SourcesMissing++
			logger.LogxWithFields("warn", fmt.Sprintf("Source %s does not exist, skipping", sourceDir), verboseFields)
			continue
		}

		stageTarget := filepath.Join(workArea.Path, filepath.Base(sourceDir))
		if err := copyTree(sourceDir, stageTarget); err != nil {
			jobctx.SourcesFailed++
			logger.LogxWithFields("warn", fmt.Sprintf("Failed to stage source %s: %v", sourceDir, err), logger.MergeFields(verboseFields, map[string]interface{}{
				"source": sourceDir,
			}))
			continue
		}
		logger.LogxWithFields("debug", fmt.Sprintf("Staged source %s", sourceDir), verboseFields)
	}

	// compress working area into the destination, fatal on failure
	archiveName := Name(cfg.ArchivePrefix, time.Now())
	finalPath := filepath.Join(cfg.DestinationDir, archiveName)
	partialPath := filepath.Join(cfg.DestinationDir, "."+archiveName+".partial")

	if err := compressDirectory(workArea.Path, partialPath); err != nil {
		logger.LogxWithFields("error", fmt.Sprintf("Failed to compress working area: %v", err), verboseFields)
		return "", fmt.Errorf("archive compression failed: %v", err)
	}

	// atomic publish, the final name only ever points at a complete archive
	if err := os.Rename(partialPath, finalPath); err != nil {
		os.Remove(partialPath)
		return "", fmt.Errorf("failed to publish archive %s: %v", finalPath, err)
	}

	// get output file size and return to job context
	fileInfo, err := os.Stat(finalPath)
	if err != nil {
		return "", fmt.Errorf("error gathering output file info: %v", err)
	}
	jobctx.ArchiveName = archiveName
	jobctx.ArchivePath = finalPath
	jobctx.CompressedSizeBytesInt = fileInfo.Size()
	jobctx.CompressedSizeMBString = fmt.Sprintf("%.2f MB", float64(jobctx.CompressedSizeBytesInt)/1024.0/1024.0)

	// basic info output
	logger.LogxWithFields("info", "Successfully compressed backup contents", map[string]interface{}{
		"package":        "archive",
		"job_id":         jobctx.JobID,
		"archive":        archiveName,
		"size":           jobctx.CompressedSizeMBString,
		"size_bytes":     jobctx.CompressedSizeBytesInt,
		"sources_failed": jobctx.SourcesFailed,
	})

	return finalPath, nil
}
