package restore

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/calder-west/stowage/archive"
	"github.com/calder-west/stowage/config"
	"github.com/calder-west/stowage/exporters"
	"github.com/calder-west/stowage/job"
	"github.com/calder-west/stowage/logger"
	"github.com/calder-west/stowage/space"
	"github.com/calder-west/stowage/verify"
)

// Phase names the steps of the restore flow, carried in log fields so the
// run log shows exactly how far a restore progressed.
type Phase string

const (
	PhaseSelecting    Phase = "selecting"
	PhasePreviewed    Phase = "previewed_contents"
	PhaseSpaceChecked Phase = "space_checked"
	PhaseConfirmed    Phase = "confirmed"
	PhaseExtracting   Phase = "extracting"
	PhaseReplaying    Phase = "replaying"
	PhaseAuxRestoring Phase = "auxiliary_restoring"
	PhaseDone         Phase = "done"
	PhaseCancelled    Phase = "cancelled"
	PhaseFailed       Phase = "failed"
)

// top-level archive members that are not mirrored source directories
var auxEntries = map[string]bool{
	"databases":              true,
	"installed_packages.txt": true,
	"service_status.txt":     true,
}

// Engine replays a selected archive onto the live filesystem. The menu owns
// selection, preview, and confirmation; Run covers extraction onward.
type Engine struct {
	Cfg      *config.ConfigFile
	Sync     TreeSynchronizer
	Importer *exporters.DatabaseImporter

	// FreeSpace is injectable for tests; defaults to a Statfs query.
	FreeSpace func(path string) (int64, error)
}

func NewEngine(cfg *config.ConfigFile, importer *exporters.DatabaseImporter) *Engine {
	return &Engine{
		Cfg:      cfg,
		Sync:     MirrorSync{},
		Importer: importer,
	}
}

func (e *Engine) freeSpace(path string) (int64, error) {
	if e.FreeSpace != nil {
		return e.FreeSpace(path)
	}
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem at %s: %v", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// CheckSpace compares the archive's summed uncompressed entry sizes against
// free space on the restore root. Insufficient space aborts the flow before
// any extraction happens.
func (e *Engine) CheckSpace(jobctx *job.JobContext, archivePath string) error {
	required, err := verify.UncompressedSize(archivePath)
	if err != nil {
		return fmt.Errorf("failed to size archive contents: %v", err)
	}

	available, err := e.freeSpace(e.Cfg.RestoreRoot)
	if err != nil {
		// undeterminable space is a failed check, never assumed sufficient
		return fmt.Errorf("failed to determine free space on %s: %v", e.Cfg.RestoreRoot, err)
	}

	jobctx.RequiredBytes = required
	jobctx.AvailableBytes = available

	if !space.HasSufficientSpace(required, available) {
		return fmt.Errorf("%w on %s: need %d bytes, %d available", space.ErrInsufficientSpace, e.Cfg.RestoreRoot, required, available)
	}

	logger.LogxWithFields("debug", fmt.Sprintf("Restore space check passed, need %d bytes with %d available", required, available), e.logFields(jobctx, PhaseSpaceChecked))
	return nil
}

// Run extracts the archive into a fresh working area and replays its
// contents onto the live filesystem. Extraction failure cleans the working
// area and aborts with no partial replay. Replay mirrors deletions present
// in the backup.
func (e *Engine) Run(jobctx *job.JobContext, archivePath string) error {

	// the operator may have sat at the confirmation prompt for a while,
	// re-check space right before extraction
	if err := e.CheckSpace(jobctx, archivePath); err != nil {
		return err
	}

	workArea, err := archive.NewWorkingArea(e.Cfg.DestinationDir, jobctx.JobID)
	if err != nil {
		return fmt.Errorf("failed to allocate working area: %v", err)
	}
	defer workArea.Release()

	logger.LogxWithFields("info", fmt.Sprintf("Extracting %s", filepath.Base(archivePath)), e.logFields(jobctx, PhaseExtracting))

	if err := extractArchive(archivePath, workArea.Path); err != nil {
		logger.LogxWithFields("error", fmt.Sprintf("Extraction failed: %v", err), e.logFields(jobctx, PhaseFailed))
		return fmt.Errorf("archive extraction failed: %v", err)
	}

	// replay each mirrored source directory onto its absolute live path
	entries, err := os.ReadDir(workArea.Path)
	if err != nil {
		return fmt.Errorf("failed to read extracted contents: %v", err)
	}

	for _, ent := range entries {
		if auxEntries[ent.Name()] || !ent.IsDir() {
			continue
		}

		livePath, ok := e.Cfg.SourceForBaseName(ent.Name())
		if !ok {
			logger.LogxWithFields("warn", fmt.Sprintf("No configured source matches archive directory %s, skipping", ent.Name()), e.logFields(jobctx, PhaseReplaying))
			continue
		}
		livePath = filepath.Join(e.Cfg.RestoreRoot, livePath)

		logger.LogxWithFields("info", fmt.Sprintf("Synchronizing %s onto %s", ent.Name(), livePath), e.logFields(jobctx, PhaseReplaying))
		if err := e.Sync.Sync(filepath.Join(workArea.Path, ent.Name()), livePath); err != nil {
			logger.LogxWithFields("error", fmt.Sprintf("Replay of %s failed: %v", ent.Name(), err), e.logFields(jobctx, PhaseFailed))
			return fmt.Errorf("replay of %s failed: %v", ent.Name(), err)
		}
	}

	// replay the database export when present and a client is available
	sqlPath := filepath.Join(workArea.Path, "databases", "all_databases.sql")
	if _, err := os.Stat(sqlPath); err == nil {
		if e.Importer != nil && e.Importer.Available() {
			logger.LogxWithFields("info", "Replaying database export", e.logFields(jobctx, PhaseAuxRestoring))
			if err := e.Importer.Import(sqlPath); err != nil {
				logger.LogxWithFields("warn", fmt.Sprintf("Database restore failed: %v", err), e.logFields(jobctx, PhaseAuxRestoring))
			}
		} else {
			logger.LogxWithFields("warn", "Database export present but no restore client available, skipping", e.logFields(jobctx, PhaseAuxRestoring))
		}
	}

	logger.LogxWithFields("info", fmt.Sprintf("Restore of %s complete", filepath.Base(archivePath)), e.logFields(jobctx, PhaseDone))
	return nil
}

func (e *Engine) logFields(jobctx *job.JobContext, phase Phase) map[string]interface{} {
	coreFields := logger.CoreLogFields(jobctx, "restore")
	return logger.MergeFields(coreFields, map[string]interface{}{
		"phase": string(phase),
	})
}

// extractArchive expands a tar.gz into destDir, rejecting entries that would
// escape it.
func extractArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %v", err)
	}
	defer f.Close()

	gzReader, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip open failed: %v", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		hdr, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read failed: %v", err)
		}

		cleanName := filepath.Clean(hdr.Name)
		if filepath.IsAbs(cleanName) || strings.HasPrefix(cleanName, "..") {
			return fmt.Errorf("archive entry %q escapes extraction dir", hdr.Name)
		}
		targetPath := filepath.Join(destDir, cleanName)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("failed to create directory %s: %v", targetPath, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, targetPath); err != nil {
				return fmt.Errorf("failed to create symlink %s: %v", targetPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return fmt.Errorf("failed to create %s: %v", targetPath, err)
			}
			if _, err := io.Copy(out, tarReader); err != nil {
				out.Close()
				return fmt.Errorf("failed to extract %s: %v", targetPath, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %v", targetPath, err)
			}
			os.Chtimes(targetPath, hdr.ModTime, hdr.ModTime)
		}
	}
	return nil
}
