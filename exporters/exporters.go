package exporters

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/calder-west/stowage/config"
	"github.com/calder-west/stowage/util"
)

// Exporter stages one optional auxiliary export into the working area.
// A missing tool or a failed export is a skip for the caller, never fatal.
type Exporter interface {
	Name() string
	Available() bool
	Export(stageDir string) error
}

// FromConfig assembles the enabled exporters for a backup run.
func FromConfig(cfg *config.ConfigFile, runner util.Runner) []Exporter {
	var exps []Exporter
	if cfg.DatabaseExport {
		exps = append(exps, &DatabaseExporter{Runner: runner, User: cfg.DatabaseUser, Password: cfg.DatabasePassword})
	}
	if cfg.PackageManifest {
		exps = append(exps, &PackageExporter{Runner: runner})
	}
	if cfg.ServiceSnapshot {
		exps = append(exps, &ServiceExporter{Runner: runner})
	}
	return exps
}

// DatabaseExporter dumps all databases into databases/all_databases.sql.
type DatabaseExporter struct {
	Runner   util.Runner
	User     string
	Password string
}

func (e *DatabaseExporter) Name() string { return "database dump" }

func (e *DatabaseExporter) Available() bool {
	_, err := e.Runner.LookPath("mysqldump")
	return err == nil
}

func (e *DatabaseExporter) Export(stageDir string) error {
	dbDir := filepath.Join(stageDir, "databases")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("failed to create databases dir: %v", err)
	}

	args := []string{"--all-databases", "--single-transaction", "--quick"}
	if e.User != "" {
		args = append(args, "-u", e.User)
	}
	if e.Password != "" {
		args = append(args, "-p"+e.Password)
	}

	outPath := filepath.Join(dbDir, "all_databases.sql")
	if err := e.Runner.RunToFile(outPath, "mysqldump", args...); err != nil {
		return fmt.Errorf("database dump failed: %v", err)
	}
	return nil
}

// PackageExporter writes the installed package manifest to
// installed_packages.txt, preferring dpkg and falling back to rpm.
type PackageExporter struct {
	Runner util.Runner
}

func (e *PackageExporter) Name() string { return "package manifest" }

func (e *PackageExporter) Available() bool {
	if _, err := e.Runner.LookPath("dpkg"); err == nil {
		return true
	}
	_, err := e.Runner.LookPath("rpm")
	return err == nil
}

func (e *PackageExporter) Export(stageDir string) error {
	outPath := filepath.Join(stageDir, "installed_packages.txt")

	if _, err := e.Runner.LookPath("dpkg"); err == nil {
		return e.Runner.RunToFile(outPath, "dpkg", "-l")
	}
	return e.Runner.RunToFile(outPath, "rpm", "-qa")
}

// ServiceExporter snapshots the service inventory to service_status.txt.
type ServiceExporter struct {
	Runner util.Runner
}

func (e *ServiceExporter) Name() string { return "service status snapshot" }

func (e *ServiceExporter) Available() bool {
	_, err := e.Runner.LookPath("systemctl")
	return err == nil
}

func (e *ServiceExporter) Export(stageDir string) error {
	outPath := filepath.Join(stageDir, "service_status.txt")
	return e.Runner.RunToFile(outPath, "systemctl", "list-units", "--type=service", "--all", "--no-pager")
}

// DatabaseImporter replays a database export during restore.
type DatabaseImporter struct {
	Runner   util.Runner
	User     string
	Password string
}

func (i *DatabaseImporter) Available() bool {
	_, err := i.Runner.LookPath("mysql")
	return err == nil
}

func (i *DatabaseImporter) Import(sqlPath string) error {
	var args []string
	if i.User != "" {
		args = append(args, "-u", i.User)
	}
	if i.Password != "" {
		args = append(args, "-p"+i.Password)
	}

	if err := i.Runner.RunFromFile(sqlPath, "mysql", args...); err != nil {
		return fmt.Errorf("database restore failed: %v", err)
	}
	return nil
}
