package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/calder-west/stowage/logger"
)

// WorkingArea is an ephemeral staging directory owned by exactly one
// operation. Release removes it on both success and failure paths.
type WorkingArea struct {
	Path string
}

// NewWorkingArea allocates a fresh staging dir under <baseDir>/work.
func NewWorkingArea(baseDir, jobID string) (*WorkingArea, error) {
	workPath := filepath.Join(baseDir, "work", "stowage-"+jobID)
	if err := os.MkdirAll(workPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create working area %s: %v", workPath, err)
	}
	return &WorkingArea{Path: workPath}, nil
}

// Release removes the working area unconditionally.
func (w *WorkingArea) Release() {
	if w == nil || w.Path == "" {
		return
	}
	if err := os.RemoveAll(w.Path); err != nil {
		logger.LogxWithFields("warn", fmt.Sprintf("Failed to release working area %s: %v", w.Path, err), map[string]interface{}{
			"package": "archive",
		})
		return
	}
	logger.LogxWithFields("debug", fmt.Sprintf("Working area %s released", w.Path), map[string]interface{}{
		"package": "archive",
	})
}
