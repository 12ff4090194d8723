package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calder-west/stowage/config"
)

// reads metrics from jsonfile
func ReadJSONMetrics(cfg *config.ConfigFile) (JobMetrics, EnvMetrics, error) {
	var job JobMetrics
	var env EnvMetrics

	jobPath := filepath.Join(cfg.MetricsDir, "last_job_metrics.json")
	envPath := filepath.Join(cfg.MetricsDir, "environment_metrics.json")

	jobFile, err := os.ReadFile(jobPath)
	if err != nil {
		return job, env, fmt.Errorf("reading job metrics: %w", err)
	}
	if err := json.Unmarshal(jobFile, &job); err != nil {
		return job, env, fmt.Errorf("parsing job metrics: %w", err)
	}

	envFile, err := os.ReadFile(envPath)
	if err != nil {
		return job, env, fmt.Errorf("reading env metrics: %w", err)
	}
	if err := json.Unmarshal(envFile, &env); err != nil {
		return job, env, fmt.Errorf("parsing env metrics: %w", err)
	}

	return job, env, nil
}

func writeAtomicJSON(metricsFilePath string, data any) error {
	tmpFilePath := metricsFilePath + ".tmp"
	f, err := os.Create(tmpFilePath)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return os.Rename(tmpFilePath, metricsFilePath)
}

func WriteMetricsFiles(cfg *config.ConfigFile, jobMetrics JobMetrics, envMetrics EnvMetrics) error {

	if err := os.MkdirAll(cfg.MetricsDir, 0755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}

	jobPath := filepath.Join(cfg.MetricsDir, "last_job_metrics.json")
	envPath := filepath.Join(cfg.MetricsDir, "environment_metrics.json")

	if err := writeAtomicJSON(jobPath, jobMetrics); err != nil {
		return fmt.Errorf("writing job metrics: %w", err)
	}
	if err := writeAtomicJSON(envPath, envMetrics); err != nil {
		return fmt.Errorf("writing env metrics: %w", err)
	}
	return nil
}

// LoadFromCacheAndExpose restores gauge values from the JSON cache so a
// short-lived metrics listener reports the last completed run.
func LoadFromCacheAndExpose(cfg *config.ConfigFile) error {
	job, env, err := ReadJSONMetrics(cfg)
	if err != nil {
		return err
	}
	ApplyPrometheusMetrics(job, env)
	return nil
}
