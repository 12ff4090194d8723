package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// copyTree copies src into dst preserving mode and modtime. Additive only:
// nothing at dst is ever removed (restore replay is where mirroring happens).
func copyTree(src, dst string) error {
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
			return os.Symlink(linkTarget, targetPath)
		case info.Mode().IsRegular():
			if err := copyFile(path, targetPath, info); err != nil {
				return err
			}
			return nil
		default:
			// sockets, devices etc are not archivable payload
			return nil
		}
	})
}

func copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", src, err)
	}
	defer in.Close()

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
