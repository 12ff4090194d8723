package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/calder-west/stowage/archive"
	"github.com/calder-west/stowage/logger"
)

// ArchiveInfo describes one retained archive in the destination directory.
type ArchiveInfo struct {
	Name      string
	Path      string
	SizeBytes int64
	CreatedAt time.Time
}

// ListArchives returns the archives in destination matching the naming
// convention, newest first. The returned slice is the retention set handed
// explicitly into the restore flow, there is no ambient shared state.
func ListArchives(destination, prefix string) ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(destination)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination directory %s: %v", destination, err)
	}

	var archives []ArchiveInfo
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		createdAt, ok := archive.ParseNameTime(prefix, ent.Name())
		if !ok {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		// name-encoded time is authoritative, fs metadata breaks ties
		archives = append(archives, ArchiveInfo{
			Name:      ent.Name(),
			Path:      filepath.Join(destination, ent.Name()),
			SizeBytes: info.Size(),
			CreatedAt: createdAt,
		})
	}

	// sort newest first
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].CreatedAt.After(archives[j].CreatedAt)
	})

	return archives, nil
}

// Prune keeps only the `keep` most recent archives matching the naming
// convention, removing older ones together with their checksum sidecars.
// Idempotent, and never touches files outside the naming convention.
func Prune(destination, prefix string, keep int) ([]string, error) {
	archives, err := ListArchives(destination, prefix)
	if err != nil {
		return nil, err
	}

	if keep < 0 {
		keep = 0
	}
	if len(archives) <= keep {
		return nil, nil
	}

	var removed []string
	for _, old := range archives[keep:] {
		if err := os.Remove(old.Path); err != nil {
			logger.LogxWithFields("error", fmt.Sprintf("Failed to prune archive %s: %v", old.Name, err), map[string]interface{}{
				"package": "retention",
				"archive": old.Name,
			})
			continue
		}
		// sidecar goes with its archive, absence is fine
		os.Remove(old.Path + ".sha256")

		removed = append(removed, old.Name)
		logger.LogxWithFields("info", fmt.Sprintf("Pruned archive %s", old.Name), map[string]interface{}{
			"package": "retention",
			"archive": old.Name,
		})
	}

	return removed, nil
}
