package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type ConfigFile struct {
	DestinationDir string   `yaml:"destination_directory"`
	SourceDirs     []string `yaml:"source_directories"`
	ArchivePrefix  string   `yaml:"archive_prefix"`
	RetentionCount int      `yaml:"retention_count"`
	PreviewLimit   int      `yaml:"preview_entry_limit"`

	DatabaseExport   bool   `yaml:"database_export"`
	DatabaseUser     string `yaml:"database_user"`
	DatabasePassword string `yaml:"database_password"`
	PackageManifest  bool   `yaml:"package_manifest"`
	ServiceSnapshot  bool   `yaml:"service_status_snapshot"`

	RestoreRoot  string `yaml:"restore_root,omitempty"`
	OfferRestart bool   `yaml:"offer_restart_after_restore"`

	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	LogTextColour bool   `yaml:"log_text_format_colouring"`

	EnableMetrics  bool   `yaml:"enable_metrics"`
	MetricsDir     string `yaml:"metrics_directory"`
	ListenAddress  string `yaml:"listen_address"`
	ListenDuration int    `yaml:"listen_duration"`

	Version string `yaml:"version,omitempty"`
}

// default config path when no -config flag is passed
const DefaultConfigPath = "/etc/stowage/config.yml"

// parse config file
func LoadConfigFile(configFilePath string) (*ConfigFile, error) {

	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file in path %s does not exist", configFilePath)
	}

	// read config data from config file
	configFileData, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// unmarshal yaml into configfile var
	var config ConfigFile
	if err := yaml.Unmarshal(configFileData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	//> CFG FILE VALIDATIONS
	// validate that destination dir is defined
	if config.DestinationDir == "" {
		return nil, fmt.Errorf("missing required config: destination_directory")
	}

	// validate that at least one backup source is declared
	if len(config.SourceDirs) == 0 {
		return nil, fmt.Errorf("missing required config: source_directories")
	}

	// source paths must be absolute so restore can map archive dirs back
	for _, sourceDir := range config.SourceDirs {
		if !filepath.IsAbs(sourceDir) {
			return nil, fmt.Errorf("invalid source_directories entry %q: path must be absolute", sourceDir)
		}
	}

	// warn on duplicated base names, restore mapping keeps the first match
	seenBaseNames := map[string]string{}
	for _, sourceDir := range config.SourceDirs {
		baseName := filepath.Base(sourceDir)
		if prior, ok := seenBaseNames[baseName]; ok {
			log.Printf("source_directories entries %q and %q share the base name %q, restore will map %q to %q", prior, sourceDir, baseName, baseName, prior)
			continue
		}
		seenBaseNames[baseName] = sourceDir
	}

	// default archive prefix
	if config.ArchivePrefix == "" {
		config.ArchivePrefix = "backup"
	}

	// default retention window
	if config.RetentionCount <= 0 {
		config.RetentionCount = 5
	}

	// default restore preview length
	if config.PreviewLimit <= 0 {
		config.PreviewLimit = 40
	}

	// default restore target to the live root filesystem
	if config.RestoreRoot == "" {
		config.RestoreRoot = "/"
	}

	// database export requires credentials
	if config.DatabaseExport && config.DatabaseUser == "" {
		return nil, fmt.Errorf("database_export enabled but database_user is empty")
	}

	// metrics cache defaults to a subdir of the destination
	if config.EnableMetrics && config.MetricsDir == "" {
		config.MetricsDir = filepath.Join(config.DestinationDir, "metrics")
	}

	// validate log_level
	// warn if invalid, default to "info"
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	// walk map, if no keys match valid log levels then warn & set config.LogLevel to `info`
	if !validLogLevels[config.LogLevel] {
		log.Printf("invalid `log_level` supplied, defaulting to `info`")
		config.LogLevel = "info"
	}

	// validate log_format
	// warn if invalid, default to "text"
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	// walk map, if no keys match valid log formats then warn & set config.LogFormat to `text`
	if !validLogFormats[config.LogFormat] {
		log.Printf("invalid `log_format` supplied, defaulting to `text`")
		config.LogFormat = "text"
	}

	return &config, nil
}

// SourceForBaseName maps an archive top-level directory name back to the
// configured absolute source path. First configured match wins.
func (c *ConfigFile) SourceForBaseName(baseName string) (string, bool) {
	for _, sourceDir := range c.SourceDirs {
		if filepath.Base(sourceDir) == baseName {
			return sourceDir, true
		}
	}
	return "", false
}
