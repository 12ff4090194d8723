package metrics

// declare metrics structs persisted between runs
type JobMetrics struct {
	LastRunSuccess bool    `json:"last_run_success"`
	LastBackupSize int64   `json:"last_backup_size_bytes"`
	LastDuration   float64 `json:"last_duration_seconds"`
	SourcesFailed  int     `json:"sources_failed"`
}

type EnvMetrics struct {
	BackupDirSize    int64 `json:"backup_dir_size_bytes"`
	BackupFileCount  int   `json:"backup_dir_filecount"`
	AvailableBytes   int64 `json:"destination_available_bytes"`
	RetainedArchives int   `json:"retained_archives"`
}
