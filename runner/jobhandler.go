package runner

import (
	"fmt"
	"os"
	"time"

	"github.com/calder-west/stowage/archive"
	"github.com/calder-west/stowage/config"
	"github.com/calder-west/stowage/exporters"
	"github.com/calder-west/stowage/job"
	"github.com/calder-west/stowage/logger"
	"github.com/calder-west/stowage/metrics"
	"github.com/calder-west/stowage/retention"
	"github.com/calder-west/stowage/space"
	"github.com/calder-west/stowage/util"
	"github.com/calder-west/stowage/verify"
)

// debug level logging output fields for runner package
func runnerLogDebugFields(context *job.JobContext) map[string]interface{} {
	coreFields := logger.CoreLogFields(context, "runner")
	fields := logger.MergeFields(coreFields, map[string]interface{}{
		"destination":     context.DestinationDir,
		"sources_missing": context.SourcesMissing,
		"sources_failed":  context.SourcesFailed,
	})

	return fields
}

// JobReport summarizes one completed backup job.
type JobReport struct {
	ArchivePath     string
	DurationSeconds float64
	SizeBytes       int64
	SourcesFailed   int
}

// RunBackupJob runs one end-to-end backup: space gate, staging + archive
// build, checksum bootstrap, retention pruning, and metrics publication.
func RunBackupJob(cfg *config.ConfigFile, cmdRunner util.Runner) (JobReport, error) {
	jobCTX := job.JobContext{
		JobID:          job.GenerateJobID(),
		StartTime:      time.Now(), // begin timer now
		DestinationDir: cfg.DestinationDir,
	}

	// log & print job start
	logger.LogxWithFields("info", " --------------------------------------------------- ", map[string]interface{}{
		"package": "spacer",
		"job_id":  jobCTX.JobID,
	})

	coreFields := logger.CoreLogFields(&jobCTX, "runner")

	logger.LogxWithFields("info", "New backup job added", map[string]interface{}{
		"package":     "runner",
		"job_id":      jobCTX.JobID,
		"destination": cfg.DestinationDir,
		"sources":     len(cfg.SourceDirs),
	})

	// confirm the destination exists and can actually take writes before
	// estimating anything
	if err := os.MkdirAll(cfg.DestinationDir, 0755); err != nil {
		finishJob(cfg, &jobCTX, false)
		return JobReport{}, fmt.Errorf("failed to create destination directory %s: %v", cfg.DestinationDir, err)
	}
	if err := util.ValidateDirectoryWriteable(cfg.DestinationDir); err != nil {
		finishJob(cfg, &jobCTX, false)
		return JobReport{}, fmt.Errorf("destination not writeable: %v", err)
	}

	// space gate runs immediately before building, state may have changed
	// since any earlier interactive check
	check, err := space.CheckDestination(cfg.SourceDirs, cfg.DestinationDir)
	if err != nil {
		finishJob(cfg, &jobCTX, false)
		return JobReport{}, fmt.Errorf("error determining available space: %v", err)
	}
	jobCTX.RequiredBytes = check.RequiredBytes
	jobCTX.AvailableBytes = check.AvailableBytes
	for _, missing := range check.MissingSources {
		logger.LogxWithFields("warn", fmt.Sprintf("Source %s is missing and contributes nothing to the estimate", missing), coreFields)
	}
	if !check.Sufficient {
		finishJob(cfg, &jobCTX, false)
		return JobReport{}, fmt.Errorf("%w at %s: need %d bytes, %d available", space.ErrInsufficientSpace, cfg.DestinationDir, check.RequiredBytes, check.AvailableBytes)
	}

	// build the archive
	archivePath, err := archive.Build(&jobCTX, cfg, exporters.FromConfig(cfg, cmdRunner))
	if err != nil {
		logger.LogxWithFields("error", fmt.Sprintf("error building archive: %v", err), runnerLogDebugFields(&jobCTX))
		finishJob(cfg, &jobCTX, false)
		return JobReport{}, err
	}

	// bootstrap the checksum record while the archive is known-fresh
	if err := verify.Verify(archivePath); err != nil {
		logger.LogxWithFields("error", fmt.Sprintf("error verifying fresh archive: %v", err), coreFields)
		finishJob(cfg, &jobCTX, false)
		return JobReport{}, fmt.Errorf("fresh archive failed verification: %v", err)
	}

	// prune older archives beyond the retention count
	if _, err := retention.Prune(cfg.DestinationDir, cfg.ArchivePrefix, cfg.RetentionCount); err != nil {
		// retention failure does not unwind a successful backup
		logger.LogxWithFields("error", fmt.Sprintf("error pruning old archives: %v", err), coreFields)
	}

	executionSeconds := finishJob(cfg, &jobCTX, true)

	return JobReport{
		ArchivePath:     archivePath,
		DurationSeconds: executionSeconds,
		SizeBytes:       jobCTX.CompressedSizeBytesInt,
		SourcesFailed:   jobCTX.SourcesFailed,
	}, nil
}

// finishJob emits the completion banner and publishes metrics.
func finishJob(cfg *config.ConfigFile, jobCTX *job.JobContext, success bool) float64 {
	jobDuration := time.Since(jobCTX.StartTime)
	executionSeconds := jobDuration.Seconds()

	level := "info"
	msg := fmt.Sprintf("Job success, execution time: %.2fs", executionSeconds)
	if success && jobCTX.SourcesFailed > 0 {
		level = "warn"
		msg = fmt.Sprintf("Job success with %d failed source(s), execution time: %.2fs", jobCTX.SourcesFailed, executionSeconds)
	}
	if !success {
		level = "error"
		msg = fmt.Sprintf("Job failed, execution time: %.2fs", executionSeconds)
	}

	logger.LogxWithFields(level, msg, map[string]interface{}{
		"package":         "runner",
		"job_id":          jobCTX.JobID,
		"archive":         jobCTX.ArchiveName,
		"duration":        fmt.Sprintf("%.2fs", executionSeconds),
		"success":         success,
		"size":            jobCTX.CompressedSizeMBString,
		"sources_missing": jobCTX.SourcesMissing,
		"sources_failed":  jobCTX.SourcesFailed,
	})
	logger.LogxWithFields("info", " --------------------------------------------------- ", map[string]interface{}{
		"package":    "spacer",
		"end_job_id": jobCTX.JobID,
	})

	if cfg.EnableMetrics {
		publishMetrics(cfg, jobCTX, success, executionSeconds)
	}

	return executionSeconds
}

func publishMetrics(cfg *config.ConfigFile, jobCTX *job.JobContext, success bool, executionSeconds float64) {
	jobMetrics := metrics.JobMetrics{
		LastRunSuccess: success,
		LastBackupSize: jobCTX.CompressedSizeBytesInt,
		LastDuration:   executionSeconds,
		SourcesFailed:  jobCTX.SourcesFailed,
	}

	envMetrics := metrics.EnvMetrics{AvailableBytes: jobCTX.AvailableBytes}
	if size, err := util.GetDirectorySize(cfg.DestinationDir); err == nil {
		envMetrics.BackupDirSize = size
	}
	// filecount covers every tarball in the destination, retained counts
	// only the archives this tool manages
	if count, err := util.GetTarballCount(cfg.DestinationDir); err == nil {
		envMetrics.BackupFileCount = count
	}
	if archives, err := retention.ListArchives(cfg.DestinationDir, cfg.ArchivePrefix); err == nil {
		envMetrics.RetainedArchives = len(archives)
	}

	metrics.ApplyPrometheusMetrics(jobMetrics, envMetrics)
	if err := metrics.WriteMetricsFiles(cfg, jobMetrics, envMetrics); err != nil {
		logger.LogxWithFields("warn", fmt.Sprintf("Failed to write metrics cache: %v", err), map[string]interface{}{
			"package": "runner",
			"job_id":  jobCTX.JobID,
		})
	}
}
