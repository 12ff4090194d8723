package menu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/calder-west/stowage/config"
	"github.com/calder-west/stowage/job"
	"github.com/calder-west/stowage/logger"
	"github.com/calder-west/stowage/restore"
	"github.com/calder-west/stowage/retention"
	"github.com/calder-west/stowage/space"
	"github.com/calder-west/stowage/util"
	"github.com/calder-west/stowage/verify"
)

// Deps wires the menu loop to the rest of the tool. Input and output are
// injected so the loop can be driven by scripted tests without a terminal.
type Deps struct {
	Cfg     *config.ConfigFile
	Backup  func() error
	Engine  *restore.Engine
	Restart func() error // nil disables the post-restore restart offer
}

// Run drives the prompt-read-dispatch loop. Returns when the operator picks
// exit or input ends.
func Run(in io.Reader, out io.Writer, d Deps) error {
	scanner := bufio.NewScanner(in)

	for {
		printMenu(out)
		fmt.Fprint(out, "Select an action [1-6]: ")
		line, ok := readLine(scanner)
		if !ok {
			return nil
		}

		switch strings.TrimSpace(line) {
		case "1":
			listSources(out, d.Cfg)
		case "2":
			checkSpace(out, d.Cfg)
		case "3":
			listArchives(out, d.Cfg)
		case "4":
			if err := d.Backup(); err != nil {
				fmt.Fprintf(out, "Backup failed: %v\n", err)
			} else {
				fmt.Fprintln(out, "Backup completed")
			}
		case "5":
			runRestore(scanner, out, d)
		case "6":
			fmt.Fprintln(out, "Goodbye")
			return nil
		default:
			fmt.Fprintln(out, "Invalid selection, choose 1-6")
		}
	}
}

func printMenu(out io.Writer) {
	fmt.Fprintln(out, "-------------------------------------------------------------------------")
	fmt.Fprintln(out, "stowage")
	fmt.Fprintln(out, "  1) List backup sources")
	fmt.Fprintln(out, "  2) Check destination space")
	fmt.Fprintln(out, "  3) List archives")
	fmt.Fprintln(out, "  4) Run backup")
	fmt.Fprintln(out, "  5) Restore from archive")
	fmt.Fprintln(out, "  6) Exit")
	fmt.Fprintln(out, "-------------------------------------------------------------------------")
}

func readLine(scanner *bufio.Scanner) (string, bool) {
	if !scanner.Scan() {
		return "", false
	}
	return scanner.Text(), true
}

func listSources(out io.Writer, cfg *config.ConfigFile) {
	for _, sourceDir := range cfg.SourceDirs {
		if _, err := os.Stat(sourceDir); err != nil {
			fmt.Fprintf(out, "  %s (missing)\n", sourceDir)
			continue
		}
		size, err := util.GetDirectorySize(sourceDir)
		if err != nil {
			fmt.Fprintf(out, "  %s (unreadable: %v)\n", sourceDir, err)
			continue
		}
		fmt.Fprintf(out, "  %s (%s)\n", sourceDir, formatMB(size))
	}
}

func checkSpace(out io.Writer, cfg *config.ConfigFile) {
	check, err := space.CheckDestination(cfg.SourceDirs, cfg.DestinationDir)
	if err != nil {
		fmt.Fprintf(out, "Space check failed: %v\n", err)
		return
	}
	for _, missing := range check.MissingSources {
		fmt.Fprintf(out, "  warning: source %s is missing\n", missing)
	}
	fmt.Fprintf(out, "Required:  %s\n", formatMB(check.RequiredBytes))
	fmt.Fprintf(out, "Available: %s\n", formatMB(check.AvailableBytes))
	if check.Sufficient {
		fmt.Fprintln(out, "Sufficient space for a backup")
	} else {
		fmt.Fprintf(out, "Insufficient space: need %d bytes, %d available\n", check.RequiredBytes, check.AvailableBytes)
	}
}

func listArchives(out io.Writer, cfg *config.ConfigFile) []retention.ArchiveInfo {
	archives, err := retention.ListArchives(cfg.DestinationDir, cfg.ArchivePrefix)
	if err != nil {
		fmt.Fprintf(out, "Failed to list archives: %v\n", err)
		return nil
	}
	if len(archives) == 0 {
		fmt.Fprintln(out, "No archives found")
		return nil
	}
	for i, a := range archives {
		fmt.Fprintf(out, "  %d) %s  %s  %s\n", i+1, a.Name, formatMB(a.SizeBytes), a.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return archives
}

// runRestore walks the operator through selection, preview, space check, and
// double confirmation before handing off to the restore engine.
func runRestore(scanner *bufio.Scanner, out io.Writer, d Deps) {
	archives := listArchives(out, d.Cfg)
	if len(archives) == 0 {
		return
	}

	// invalid index loops the prompt rather than failing the run
	var selected retention.ArchiveInfo
	for {
		fmt.Fprintf(out, "Select archive to restore [1-%d] (q to cancel): ", len(archives))
		line, ok := readLine(scanner)
		if !ok {
			return
		}
		input := strings.TrimSpace(line)
		if strings.EqualFold(input, "q") {
			fmt.Fprintln(out, "Restore cancelled")
			return
		}
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(archives) {
			fmt.Fprintf(out, "Invalid selection %q, choose 1-%d\n", input, len(archives))
			continue
		}
		selected = archives[idx-1]
		break
	}

	// informational preview, bounded and never gating
	entries, err := verify.ListEntries(selected.Path, d.Cfg.PreviewLimit)
	if err != nil {
		fmt.Fprintf(out, "Cannot read archive %s: %v\n", selected.Name, err)
		return
	}
	fmt.Fprintf(out, "Archive %s contains (first %d entries):\n", selected.Name, d.Cfg.PreviewLimit)
	for _, e := range entries {
		fmt.Fprintf(out, "  %s\n", e.Name)
	}

	// integrity gate before touching the live filesystem
	if err := verify.Verify(selected.Path); err != nil {
		fmt.Fprintf(out, "Refusing to restore, verification failed: %v\n", err)
		return
	}

	jobCTX := job.JobContext{
		JobID:          job.GenerateJobID(),
		StartTime:      time.Now(),
		DestinationDir: d.Cfg.DestinationDir,
		ArchiveName:    selected.Name,
		ArchivePath:    selected.Path,
	}

	if err := d.Engine.CheckSpace(&jobCTX, selected.Path); err != nil {
		fmt.Fprintf(out, "Restore aborted: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Restore needs %s, %s available on %s\n", formatMB(jobCTX.RequiredBytes), formatMB(jobCTX.AvailableBytes), d.Cfg.RestoreRoot)

	// explicit affirmative confirmation, anything else cancels cleanly
	fmt.Fprint(out, "Restoring will overwrite live files and remove files absent from the backup. Type 'yes' to proceed: ")
	line, ok := readLine(scanner)
	if !ok || strings.TrimSpace(strings.ToLower(line)) != "yes" {
		fmt.Fprintln(out, "Restore cancelled, no changes made")
		return
	}

	if err := d.Engine.Run(&jobCTX, selected.Path); err != nil {
		fmt.Fprintf(out, "Restore failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, "Restore completed")

	// restart is a side effect outside the restore contract, separate gate
	if d.Cfg.OfferRestart && d.Restart != nil {
		fmt.Fprint(out, "Restart the host now? Type 'yes' to restart: ")
		line, ok := readLine(scanner)
		if ok && strings.TrimSpace(strings.ToLower(line)) == "yes" {
			if err := d.Restart(); err != nil {
				fmt.Fprintf(out, "Restart failed: %v\n", err)
				logger.LogxWithFields("error", fmt.Sprintf("Host restart failed: %v", err), map[string]interface{}{
					"package": "menu",
				})
			}
		}
	}
}

func formatMB(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/1024.0/1024.0)
}
