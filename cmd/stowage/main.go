package main

// Stowage

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calder-west/stowage/config"
	"github.com/calder-west/stowage/exporters"
	"github.com/calder-west/stowage/logger"
	"github.com/calder-west/stowage/menu"
	"github.com/calder-west/stowage/metrics"
	"github.com/calder-west/stowage/restore"
	"github.com/calder-west/stowage/retention"
	"github.com/calder-west/stowage/runner"
	"github.com/calder-west/stowage/schedule"
	"github.com/calder-west/stowage/space"
	"github.com/calder-west/stowage/util"
	"github.com/calder-west/stowage/verify"
)

const Version = "v0.4.1"
const motd = "take care of your servers and they take care of you"

// main loop
func main() {
	// version & config flags
	appVersion := flag.Bool("version", false, "Display app version information")
	configPath := flag.String("config", config.DefaultConfigPath, "Path to the stowage config file")

	// one-shot action flags, default with none set is the interactive menu
	menuBool := flag.Bool("menu", false, "Run the interactive menu (the default with no flags)")
	backupBool := flag.Bool("backup", false, "Run one backup job and exit")
	checkSpaceBool := flag.Bool("check-space", false, "Estimate required vs available space and exit")
	listBool := flag.Bool("list", false, "List archives in the destination and exit")
	verifyTarget := flag.String("verify", "", "Verify the given archive and exit")
	cronSpec := flag.String("schedule", "", "Run backups unattended on a cron schedule (e.g. \"0 2 * * *\")")
	metricsServe := flag.Bool("metrics-serve", false, "Expose cached run metrics on /metrics for the configured duration")

	// custom help messaging
	flag.Usage = func() {
		fmt.Println("------------------------------------------------------------------------")
		fmt.Printf("stowage %s  ~  %s\n", Version, motd)
		fmt.Println("-------------------------------------------------------------------------")
		fmt.Println("[Options]")
		fmt.Println("  [Setup & Info]")
		fmt.Println("     -config <path>")
		fmt.Println("        Path to the config file (default /etc/stowage/config.yml)")
		fmt.Println("     -version")
		fmt.Println("        Display app version information")
		fmt.Println("\n  [One-shot Actions]")
		fmt.Println("     -menu")
		fmt.Println("        Run the interactive menu (the default with no flags)")
		fmt.Println("     -backup")
		fmt.Println("        Run one backup job and exit")
		fmt.Println("     -check-space")
		fmt.Println("        Estimate required vs available space and exit")
		fmt.Println("     -list")
		fmt.Println("        List archives in the destination and exit")
		fmt.Println("     -verify <archive>")
		fmt.Println("        Verify the given archive and exit")
		fmt.Println("\n  [Unattended Mode]")
		fmt.Println("     -schedule \"<cron spec>\"")
		fmt.Println("        Run backups on a schedule until interrupted")
		fmt.Println("     -metrics-serve")
		fmt.Println("        Expose cached run metrics on /metrics for the configured duration")
		fmt.Println("\n[Examples]")
		fmt.Println("  Interactive menu")
		fmt.Println("    stowage")
		fmt.Println("\n  One-shot backup with a custom config")
		fmt.Println("    stowage -config /root/stowage.yml -backup")
		fmt.Println("\n  Nightly unattended backups")
		fmt.Println("    stowage -schedule \"0 2 * * *\"")
		fmt.Println("\nNote: run one stowage at a time per destination, concurrent invocations")
		fmt.Println("against the same destination directory are unsupported")
	}

	flag.Parse()

	// special flags
	if *appVersion {
		fmt.Printf("stowage  ~  %s\n", motd)
		fmt.Printf("version: %s\n", Version)
		os.Exit(0)
	}

	// validate that current UID=0/program is running as root
	if os.Geteuid() != 0 {
		fmt.Println("Please run stowage with sudo or as the root user")
		fmt.Println("This is required to read system directories, dump databases, and restore onto live paths")
		os.Exit(0)
	}

	// load configfile
	configFile, err := config.LoadConfigFile(*configPath)
	if err != nil {
		fmt.Printf("Error parsing config: %v\n", err)
		os.Exit(1)
	}

	// destination must exist before the run log can live there
	if err := os.MkdirAll(configFile.DestinationDir, 0755); err != nil {
		fmt.Printf("Error creating destination directory: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogging(configFile.DestinationDir, configFile.LogLevel, configFile.LogFormat, configFile.LogTextColour)

	cmdRunner := util.ExecRunner{}

	switch {
	case *checkSpaceBool:
		runCheckSpace(configFile)
	case *listBool:
		runList(configFile)
	case *verifyTarget != "":
		runVerify(*verifyTarget)
	case *backupBool:
		if _, err := runner.RunBackupJob(configFile, cmdRunner); err != nil {
			logger.Logx.Fatalf("Backup failed: %v", err)
		}
	case *cronSpec != "":
		runScheduled(configFile, cmdRunner, *cronSpec)
	case *metricsServe:
		runMetricsServer(configFile)
	case *menuBool:
		runMenu(configFile, cmdRunner)
	default:
		runMenu(configFile, cmdRunner)
	}
}

func runCheckSpace(cfg *config.ConfigFile) {
	check, err := space.CheckDestination(cfg.SourceDirs, cfg.DestinationDir)
	if err != nil {
		logger.Logx.Fatalf("Space check failed: %v", err)
	}
	for _, missing := range check.MissingSources {
		fmt.Printf("warning: source %s is missing\n", missing)
	}
	fmt.Printf("required:  %d bytes\n", check.RequiredBytes)
	fmt.Printf("available: %d bytes\n", check.AvailableBytes)
	if !check.Sufficient {
		logger.Logx.Fatalf("Insufficient space at %s: need %d bytes, %d available", cfg.DestinationDir, check.RequiredBytes, check.AvailableBytes)
	}
}

func runList(cfg *config.ConfigFile) {
	archives, err := retention.ListArchives(cfg.DestinationDir, cfg.ArchivePrefix)
	if err != nil {
		logger.Logx.Fatalf("Failed to list archives: %v", err)
	}
	for i, a := range archives {
		fmt.Printf("%d) %s  %d bytes  %s\n", i+1, a.Name, a.SizeBytes, a.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func runVerify(archivePath string) {
	if err := verify.Verify(archivePath); err != nil {
		logger.Logx.Fatalf("Verification failed: %v", err)
	}
	fmt.Println("archive verified")
}

func runScheduled(cfg *config.ConfigFile, cmdRunner util.Runner, spec string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Logx.Info("shutting down...")
		cancel()
	}()

	err := schedule.Run(ctx, spec, func() {
		if _, err := runner.RunBackupJob(cfg, cmdRunner); err != nil {
			logger.Logx.Errorf("Scheduled backup failed: %v", err)
		}
	})
	if err != nil {
		logger.Logx.Fatalf("Scheduler error: %v", err)
	}
}

func runMetricsServer(cfg *config.ConfigFile) {
	if !cfg.EnableMetrics {
		logger.Logx.Fatal("Metrics are disabled in config, set enable_metrics: true")
	}
	if err := metrics.LoadFromCacheAndExpose(cfg); err != nil {
		logger.Logx.Warnf("No cached metrics to expose yet: %v", err)
	}
	addr := cfg.ListenAddress
	if addr == "" {
		addr = "127.0.0.1:9099"
	}
	duration := time.Duration(cfg.ListenDuration) * time.Second
	if duration <= 0 {
		duration = 60 * time.Second
	}
	logger.Logx.Infof("Serving metrics on %s for %s", addr, duration)
	metrics.StartMetricsServer(addr, duration)
}

func runMenu(cfg *config.ConfigFile, cmdRunner util.Runner) {
	importer := &exporters.DatabaseImporter{Runner: cmdRunner, User: cfg.DatabaseUser, Password: cfg.DatabasePassword}
	engine := restore.NewEngine(cfg, importer)

	deps := menu.Deps{
		Cfg: cfg,
		Backup: func() error {
			_, err := runner.RunBackupJob(cfg, cmdRunner)
			return err
		},
		Engine: engine,
		Restart: func() error {
			return cmdRunner.Run("systemctl", "reboot")
		},
	}

	if err := menu.Run(os.Stdin, os.Stdout, deps); err != nil {
		logger.Logx.Fatalf("Menu error: %v", err)
	}
}
