package util

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner abstracts out-of-process tool invocation so callers can be tested
// against fakes rather than real binaries.
type Runner interface {
	LookPath(name string) (string, error)
	Run(name string, args ...string) error
	RunToFile(outputPath string, name string, args ...string) error
	RunFromFile(inputPath string, name string, args ...string) error
}

// ExecRunner executes commands on the host os.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// executes command on os
func (ExecRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// executes command on os, streaming stdout into outputPath
func (ExecRunner) RunToFile(outputPath string, name string, args ...string) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %v", outputPath, err)
	}
	defer outFile.Close()

	var stderr bytes.Buffer
	command := exec.Command(name, args...)
	command.Stdout = outFile
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		os.Remove(outputPath) // ensure partial file is cleaned up
		return fmt.Errorf("%s failed: %v: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// executes command on os, feeding inputPath to stdin
func (ExecRunner) RunFromFile(inputPath string, name string, args ...string) error {
	inFile, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file %s: %v", inputPath, err)
	}
	defer inFile.Close()

	var stderr bytes.Buffer
	command := exec.Command(name, args...)
	command.Stdin = inFile
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return fmt.Errorf("%s failed: %v: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func ValidateDirectoryString(directoryPathString string) error {
	// validate directory exists
	dirInfo, err := os.Stat(directoryPathString)

	// if dir DNE or is not dirtype, return err
	if err != nil || !dirInfo.IsDir() {
		return fmt.Errorf("target path %s does not exist or is not a directory", directoryPathString)
	}

	return nil
}

func ValidateDirectoryWriteable(directoryPathString string) error {
	// validate directory string before proceeding
	if err := ValidateDirectoryString(directoryPathString); err != nil {
		return err
	}

	// attempt to create temp local file
	testFilePath := filepath.Join(directoryPathString, ".stowage_testwrite.tmp")
	// create & remove file, return error if file creation fails
	testFile, err := os.Create(testFilePath)
	if err != nil {
		return fmt.Errorf("cannot write to destination directory %s: %v", directoryPathString, err)
	}
	testFile.Close()
	os.Remove(testFilePath)

	return nil
}

func GetDirectorySize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err // propagate error
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func GetTarballCount(path string) (int, error) {
	count := 0
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".tar.gz") {
			count++
		}
		return nil
	})
	return count, err
}
