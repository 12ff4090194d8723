package restore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// TreeSynchronizer replays one extracted top-level directory onto its live
// absolute path. Implementations mirror deletions: files present live but
// absent from the backup are removed. This is the destructive half of the
// tool, in contrast to the additive copy used while building archives.
type TreeSynchronizer interface {
	Sync(src, dst string) error
}

// MirrorSync is the default pure-Go synchronizer.
type MirrorSync struct{}

func (MirrorSync) Sync(src, dst string) error {
	if err := copyInto(src, dst); err != nil {
		return err
	}
	return deleteExtras(src, dst)
}

// copyInto writes everything under src into dst, overwriting divergent files.
func copyInto(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		targetPath := filepath.Join(dst, relPath)

		switch {
		case info.IsDir():
			if err := os.MkdirAll(targetPath, info.Mode().Perm()); err != nil {
				return fmt.Errorf("failed to create directory %s: %v", targetPath, err)
			}
			return nil
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			// replace whatever sits at the target path, including a
			// non-empty directory
			if err := os.RemoveAll(targetPath); err != nil {
				return fmt.Errorf("failed to clear %s: %v", targetPath, err)
			}
			return os.Symlink(linkTarget, targetPath)
		case info.Mode().IsRegular():
			return syncFile(path, targetPath, info)
		default:
			return nil
		}
	})
}

func syncFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", src, err)
	}
	defer in.Close()

	// a directory may occupy the destination path, clear it first
	if dstInfo, err := os.Lstat(dst); err == nil && dstInfo.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("failed to clear %s: %v", dst, err)
		}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %v", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %v", dst, err)
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// deleteExtras removes paths under dst that are absent from src. Deepest
// paths go first so emptied directories can be removed on the way up.
func deleteExtras(src, dst string) error {
	var extras []string

	err := filepath.Walk(dst, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			// a path already deleted below its removed parent
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if path == dst {
			return nil
		}

		relPath, err := filepath.Rel(dst, path)
		if err != nil {
			return err
		}

		if _, err := os.Lstat(filepath.Join(src, relPath)); os.IsNotExist(err) {
			extras = append(extras, path)
			if info.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Sort(sort.Reverse(sort.StringSlice(extras)))
	for _, path := range extras {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %v", path, err)
		}
	}
	return nil
}
