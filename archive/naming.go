package archive

import (
	"fmt"
	"strings"
	"time"
)

// zero-padded so names sort lexicographically by creation order
const nameTimestampLayout = "20060102_150405"

// Suffix shared by every archive this tool produces.
const Suffix = ".tar.gz"

// Name derives an archive filename from the configured prefix and a
// second-resolution creation timestamp.
func Name(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, t.Format(nameTimestampLayout), Suffix)
}

// ParseNameTime recovers the creation timestamp encoded in an archive name.
// Returns false for files that do not match the naming convention.
func ParseNameTime(prefix, name string) (time.Time, bool) {
	if !strings.HasPrefix(name, prefix+"_") || !strings.HasSuffix(name, Suffix) {
		return time.Time{}, false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"_"), Suffix)
	t, err := time.ParseInLocation(nameTimestampLayout, core, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
