package space

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/calder-west/stowage/util"
)

// ErrInsufficientSpace is returned when a destination cannot hold the
// estimated payload. Callers report bytes needed vs available alongside it.
var ErrInsufficientSpace = errors.New("insufficient space")

// CheckResult carries one space estimation pass over sources + destination.
type CheckResult struct {
	RequiredBytes  int64
	AvailableBytes int64
	MissingSources []string
	Sufficient     bool
}

// EstimateRequired sums on-disk byte sizes of each existing source path.
// Missing sources contribute 0 and are returned for logging, never an error.
func EstimateRequired(sources []string) (int64, []string) {
	var required int64
	var missing []string

	for _, sourcePath := range sources {
		if _, err := os.Stat(sourcePath); err != nil {
			missing = append(missing, sourcePath)
			continue
		}
		size, err := util.GetDirectorySize(sourcePath)
		if err != nil {
			// unreadable subtree counts what was walked so far; flag it
			missing = append(missing, sourcePath)
			continue
		}
		required += size
	}
	return required, missing
}

// EstimateAvailable reads free space of the filesystem containing the
// destination, creating the destination directory first if absent.
func EstimateAvailable(destination string) (int64, error) {
	if err := os.MkdirAll(destination, 0755); err != nil {
		return 0, fmt.Errorf("failed to create destination directory %s: %v", destination, err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(destination, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem at %s: %v", destination, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// strict comparison; undeterminable availability is handled by the caller
// treating EstimateAvailable errors as failure, never as sufficient
func HasSufficientSpace(required, available int64) bool {
	return available >= required
}

// CheckDestination performs a full estimation pass. Re-run immediately before
// any destructive action, external state may change between check and use.
func CheckDestination(sources []string, destination string) (CheckResult, error) {
	required, missing := EstimateRequired(sources)

	available, err := EstimateAvailable(destination)
	if err != nil {
		return CheckResult{RequiredBytes: required, MissingSources: missing}, err
	}

	return CheckResult{
		RequiredBytes:  required,
		AvailableBytes: available,
		MissingSources: missing,
		Sufficient:     HasSufficientSpace(required, available),
	}, nil
}
