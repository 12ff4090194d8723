package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// compressDirectory tars and gzips the contents of stageDir into outputFile.
// Entries are written relative to stageDir, so the archive root holds the
// staged source dirs and aux exports directly.
func compressDirectory(stageDir, outputFile string) error {

	// ensure staging dir is valid
	fi, err := os.Stat(stageDir)
	if err != nil {
		return fmt.Errorf("invalid staging directory %s: %v", stageDir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("path %s is not a directory", stageDir)
	}

	// create output file
	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create tarball file %s: %v", outputFile, err)
	}
	defer out.Close()

	// wrap outputfile with gzip writer
	gzWriter := gzip.NewWriter(out)
	defer gzWriter.Close()

	// create tar writer
	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	// walk the directory recursively
	err = filepath.Walk(stageDir, func(filePath string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// build relative path to staging root for directory structure
		relPath, err := filepath.Rel(stageDir, filePath)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		// if dir, only write a header with no file contents
		if info.IsDir() {
			hdr := &tar.Header{
				Name:     relPath + "/",
				Mode:     int64(info.Mode()),
				Typeflag: tar.TypeDir,
				ModTime:  info.ModTime(),
			}
			return tarWriter.WriteHeader(hdr)
		}

		// otherwise, it's a file or symlink
		// create a new tar header based on file info
		linkTarget := ""
		if info.Mode()&os.ModeSymlink != 0 {
			if linkTarget, err = os.Readlink(filePath); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}

		// insert relative path for Name field
		header.Name = relPath

		// write the header
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		// if it's a regular file, copy its contents
		if info.Mode().IsRegular() {
			file, err := os.Open(filePath)
			if err != nil {
				return err
			}
			defer file.Close()

			// copy the file data into the tar
			_, err = io.Copy(tarWriter, file)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// if error during walk or tar writing, clean partial file
		os.Remove(outputFile)
		return fmt.Errorf("failed while building tarball: %v", err)
	}

	// force flush and close writers
	if err := tarWriter.Close(); err != nil {
		os.Remove(outputFile)
		return fmt.Errorf("tar writer close error: %v", err)
	}
	if err := gzWriter.Close(); err != nil {
		os.Remove(outputFile)
		return fmt.Errorf("gzip writer close error: %v", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outputFile)
		return fmt.Errorf("output file close error: %v", err)
	}

	return nil
}
