package exporters

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/calder-west/stowage/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and writes canned output instead of
// shelling out.
type fakeRunner struct {
	tools    map[string]bool // tool name -> present on "host"
	output   string
	failWith error
	calls    []string
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.tools[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("%s not found", name)
}

func (f *fakeRunner) Run(name string, args ...string) error {
	f.calls = append(f.calls, name)
	return f.failWith
}

func (f *fakeRunner) RunToFile(outputPath string, name string, args ...string) error {
	f.calls = append(f.calls, name)
	if f.failWith != nil {
		return f.failWith
	}
	return os.WriteFile(outputPath, []byte(f.output), 0644)
}

func (f *fakeRunner) RunFromFile(inputPath string, name string, args ...string) error {
	f.calls = append(f.calls, name)
	return f.failWith
}

func TestFromConfigAssemblesEnabledExporters(t *testing.T) {
	cfg := &config.ConfigFile{
		DatabaseExport:  true,
		DatabaseUser:    "root",
		PackageManifest: true,
		ServiceSnapshot: false,
	}

	exps := FromConfig(cfg, &fakeRunner{})
	require.Len(t, exps, 2)
	assert.Equal(t, "database dump", exps[0].Name())
	assert.Equal(t, "package manifest", exps[1].Name())
}

func TestDatabaseExporter(t *testing.T) {
	runner := &fakeRunner{tools: map[string]bool{"mysqldump": true}, output: "-- dump\n"}
	exp := &DatabaseExporter{Runner: runner, User: "root"}

	require.True(t, exp.Available())

	stageDir := t.TempDir()
	require.NoError(t, exp.Export(stageDir))

	data, err := os.ReadFile(filepath.Join(stageDir, "databases", "all_databases.sql"))
	require.NoError(t, err)
	assert.Equal(t, "-- dump\n", string(data))
	assert.Equal(t, []string{"mysqldump"}, runner.calls)
}

func TestDatabaseExporterUnavailable(t *testing.T) {
	exp := &DatabaseExporter{Runner: &fakeRunner{}}
	assert.False(t, exp.Available())
}

func TestPackageExporterPrefersDpkg(t *testing.T) {
	runner := &fakeRunner{tools: map[string]bool{"dpkg": true, "rpm": true}, output: "ii  curl\n"}
	exp := &PackageExporter{Runner: runner}

	stageDir := t.TempDir()
	require.NoError(t, exp.Export(stageDir))
	assert.Equal(t, []string{"dpkg"}, runner.calls)
	assert.FileExists(t, filepath.Join(stageDir, "installed_packages.txt"))
}

func TestPackageExporterFallsBackToRpm(t *testing.T) {
	runner := &fakeRunner{tools: map[string]bool{"rpm": true}, output: "curl-8.0\n"}
	exp := &PackageExporter{Runner: runner}

	require.True(t, exp.Available())
	stageDir := t.TempDir()
	require.NoError(t, exp.Export(stageDir))
	assert.Equal(t, []string{"rpm"}, runner.calls)
}

func TestServiceExporter(t *testing.T) {
	runner := &fakeRunner{tools: map[string]bool{"systemctl": true}, output: "nginx.service loaded active\n"}
	exp := &ServiceExporter{Runner: runner}

	require.True(t, exp.Available())
	stageDir := t.TempDir()
	require.NoError(t, exp.Export(stageDir))

	data, err := os.ReadFile(filepath.Join(stageDir, "service_status.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "nginx.service")
}

func TestDatabaseImporter(t *testing.T) {
	runner := &fakeRunner{tools: map[string]bool{"mysql": true}}
	imp := &DatabaseImporter{Runner: runner, User: "root"}

	require.True(t, imp.Available())
	require.NoError(t, imp.Import("/tmp/all_databases.sql"))
	assert.Equal(t, []string{"mysql"}, runner.calls)

	imp2 := &DatabaseImporter{Runner: &fakeRunner{}}
	assert.False(t, imp2.Available(), "missing client means skip, not failure")
}
