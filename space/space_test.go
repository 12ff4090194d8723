package space

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateRequiredSumsExistingSources(t *testing.T) {
	root := t.TempDir()
	srcA := filepath.Join(root, "src_a")
	srcB := filepath.Join(root, "src_b")
	require.NoError(t, os.MkdirAll(srcA, 0755))
	require.NoError(t, os.MkdirAll(srcB, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcA, "a.txt"), []byte("aaaa"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcB, "b.txt"), []byte("bbbbbb"), 0644))

	required, missing := EstimateRequired([]string{srcA, srcB})
	assert.Equal(t, int64(10), required)
	assert.Empty(t, missing)
}

func TestEstimateRequiredFlagsMissingSources(t *testing.T) {
	root := t.TempDir()
	srcA := filepath.Join(root, "src_a")
	require.NoError(t, os.MkdirAll(srcA, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcA, "a.txt"), []byte("aaaa"), 0644))

	ghost := filepath.Join(root, "ghost")
	required, missing := EstimateRequired([]string{srcA, ghost})

	assert.Equal(t, int64(4), required, "missing sources contribute 0")
	assert.Equal(t, []string{ghost}, missing)
}

func TestHasSufficientSpaceIsStrict(t *testing.T) {
	assert.True(t, HasSufficientSpace(100, 100))
	assert.True(t, HasSufficientSpace(100, 101))
	assert.False(t, HasSufficientSpace(100, 99))
	assert.False(t, HasSufficientSpace(100, 0))
}

func TestEstimateAvailableCreatesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "not", "yet", "there")

	available, err := EstimateAvailable(dest)
	require.NoError(t, err)
	assert.DirExists(t, dest)
	assert.Greater(t, available, int64(0))
}

func TestCheckDestination(t *testing.T) {
	root := t.TempDir()
	srcA := filepath.Join(root, "src_a")
	require.NoError(t, os.MkdirAll(srcA, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcA, "a.txt"), []byte("payload"), 0644))

	check, err := CheckDestination([]string{srcA}, filepath.Join(root, "dest"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), check.RequiredBytes)
	assert.True(t, check.Sufficient, "a tmpdir has more than 7 bytes free")
}
