package archive

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameFormat(t *testing.T) {
	ts := time.Date(2024, 3, 7, 4, 5, 6, 0, time.Local)
	assert.Equal(t, "backup_20240307_040506.tar.gz", Name("backup", ts))
}

func TestNameSortsByCreationOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 59, 58, 0, time.Local)
	var names []string
	for i := 0; i < 6; i++ {
		// cross minute/hour boundaries to exercise zero padding
		names = append(names, Name("backup", base.Add(time.Duration(i)*37*time.Second)))
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	assert.Equal(t, names, sorted, "archive names must sort lexicographically by creation order")
}

func TestParseNameTimeRoundTrip(t *testing.T) {
	ts := time.Date(2023, 12, 31, 23, 59, 59, 0, time.Local)
	name := Name("srv", ts)

	parsed, ok := ParseNameTime("srv", name)
	require.True(t, ok)
	assert.True(t, ts.Equal(parsed))
}

func TestParseNameTimeRejectsForeignFiles(t *testing.T) {
	for _, name := range []string{
		"notes.txt",
		"backup_20240101_000000.tar.gz.sha256",
		"other_20240101_000000.tar.gz",
		"backup_2024x101_000000.tar.gz",
		"backup_20240101.tar.gz",
	} {
		_, ok := ParseNameTime("backup", name)
		assert.False(t, ok, "name %q must not match the convention", name)
	}
}
