package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestLoadConfigFileDefaults(t *testing.T) {
	path := writeConfig(t, `
destination_directory: /var/stowage/backups
source_directories:
  - /etc
  - /var/www
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "backup", cfg.ArchivePrefix)
	assert.Equal(t, 5, cfg.RetentionCount)
	assert.Equal(t, 40, cfg.PreviewLimit)
	assert.Equal(t, "/", cfg.RestoreRoot)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfigFileFullSurface(t *testing.T) {
	path := writeConfig(t, `
destination_directory: /mnt/backup
source_directories:
  - /etc
archive_prefix: nightly
retention_count: 3
preview_entry_limit: 10
database_export: true
database_user: root
package_manifest: true
service_status_snapshot: true
log_level: debug
log_format: json
enable_metrics: true
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.ArchivePrefix)
	assert.Equal(t, 3, cfg.RetentionCount)
	assert.Equal(t, 10, cfg.PreviewLimit)
	assert.True(t, cfg.DatabaseExport)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, filepath.Join("/mnt/backup", "metrics"), cfg.MetricsDir)
}

func TestLoadConfigFileMissingDestination(t *testing.T) {
	path := writeConfig(t, `
source_directories:
  - /etc
`)
	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination_directory")
}

func TestLoadConfigFileMissingSources(t *testing.T) {
	path := writeConfig(t, `
destination_directory: /mnt/backup
`)
	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_directories")
}

func TestLoadConfigFileRejectsRelativeSources(t *testing.T) {
	path := writeConfig(t, `
destination_directory: /mnt/backup
source_directories:
  - etc/nginx
`)
	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be absolute")
}

func TestLoadConfigFileDatabaseExportNeedsUser(t *testing.T) {
	path := writeConfig(t, `
destination_directory: /mnt/backup
source_directories:
  - /etc
database_export: true
`)
	_, err := LoadConfigFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_user")
}

func TestLoadConfigFileInvalidLogSettingsDefaulted(t *testing.T) {
	path := writeConfig(t, `
destination_directory: /mnt/backup
source_directories:
  - /etc
log_level: chatty
log_format: xml
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestSourceForBaseName(t *testing.T) {
	cfg := &ConfigFile{SourceDirs: []string{"/etc/nginx", "/var/www"}}

	src, ok := cfg.SourceForBaseName("www")
	require.True(t, ok)
	assert.Equal(t, "/var/www", src)

	_, ok = cfg.SourceForBaseName("unknown")
	assert.False(t, ok)
}

func TestLoadConfigFileAbsent(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
