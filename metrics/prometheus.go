package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric declarations.
var jobSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "stowage_last_run_success",
	Help: "Last job run success status (1=success, 0=failure)",
})

var backupSize = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "stowage_last_backup_size_bytes",
	Help: "Size of last backup archive in bytes",
})

var jobDuration = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "stowage_last_job_duration_seconds",
	Help: "Duration of last job run in seconds",
})

var sourcesFailed = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "stowage_last_run_sources_failed",
	Help: "Number of source items that failed to copy during the last run",
})

var backupDirSize = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "stowage_backup_dir_bytes",
	Help: "Total size in bytes of the backup destination directory",
})

var backupFileCount = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "stowage_backup_dir_filecount",
	Help: "Number of tarballs in the backup destination directory",
})

var availableBytes = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "stowage_destination_available_bytes",
	Help: "Free space on the destination filesystem at the last run",
})

var retainedArchives = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "stowage_retained_archives",
	Help: "Number of managed archives held under the retention policy",
})

// Register metrics on package initialization.
func init() {
	prometheus.MustRegister(jobSuccess, backupSize, jobDuration, sourcesFailed, backupDirSize, backupFileCount, availableBytes, retainedArchives)
}

// ApplyPrometheusMetrics pushes persisted run metrics into the gauges.
func ApplyPrometheusMetrics(job JobMetrics, env EnvMetrics) {
	if job.LastRunSuccess {
		jobSuccess.Set(1)
	} else {
		jobSuccess.Set(0)
	}
	backupSize.Set(float64(job.LastBackupSize))
	jobDuration.Set(job.LastDuration)
	sourcesFailed.Set(float64(job.SourcesFailed))

	backupDirSize.Set(float64(env.BackupDirSize))
	backupFileCount.Set(float64(env.BackupFileCount))
	availableBytes.Set(float64(env.AvailableBytes))
	retainedArchives.Set(float64(env.RetainedArchives))
}

// open metrics endpoint for duration
func StartMetricsServer(addr string, duration time.Duration) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		http.ListenAndServe(addr, nil)
	}()
	time.Sleep(duration)
}
