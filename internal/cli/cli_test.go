package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func initRepo(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	args := append([]string{"init", "--name", "demo", "--author", "Ada L.", "-C", dir}, extra...)
	out, err := runCLI(t, args...)
	require.NoError(t, err, "init output: %s", out)
	return dir
}

func TestInit_CreatesRepository(t *testing.T) {
	dir := initRepo(t)

	info, err := os.Stat(filepath.Join(dir, strataDir))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(dir, strataDir, configFile))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, strataDir, metadataDir))
	assert.NoError(t, err, "file backend keeps blobs under the metadata directory")
}

func TestInit_FailsWhenAlreadyInitialized(t *testing.T) {
	dir := initRepo(t)

	_, err := runCLI(t, "init", "--name", "demo", "-C", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatus_Text(t *testing.T) {
	dir := initRepo(t)

	out, err := runCLI(t, "status", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Project: demo")
	assert.Contains(t, out, "Creator: Ada L.")
	assert.Contains(t, out, "Index datasets: 0 entries")
	assert.Contains(t, out, "Index plans: 0 entries")
	assert.Contains(t, out, "Index activities: 0 entries")
}

func TestStatus_JSON(t *testing.T) {
	dir := initRepo(t)

	out, err := runCLI(t, "status", "--format", "json", "-C", dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "demo", data["project"])
	assert.Equal(t, "file", data["storage"])
}

func TestStatus_OutsideRepository(t *testing.T) {
	_, err := runCLI(t, "status", "-C", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDataset_AddLsShow(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "jan.csv"), []byte("a,b\n1,2\n"), 0o644))

	out, err := runCLI(t, "dataset", "add", "measurements",
		"--title", "Raw measurements", "--keyword", "lab",
		"--file", "data/jan.csv", "-C", dir)
	require.NoError(t, err, "add output: %s", out)
	assert.Contains(t, out, "measurements")

	out, err = runCLI(t, "dataset", "ls", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "measurements")

	out, err = runCLI(t, "dataset", "show", "measurements", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Raw measurements")
	assert.Contains(t, out, "data/jan.csv")
	assert.Contains(t, out, "8 bytes")
}

func TestDataset_AddDuplicate(t *testing.T) {
	dir := initRepo(t)

	_, err := runCLI(t, "dataset", "add", "measurements", "-C", dir)
	require.NoError(t, err)

	_, err = runCLI(t, "dataset", "add", "measurements", "-C", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDataset_LsPrefix(t *testing.T) {
	dir := initRepo(t)

	for _, name := range []string{"alpha", "alpine", "beta"} {
		_, err := runCLI(t, "dataset", "add", name, "-C", dir)
		require.NoError(t, err)
	}

	out, err := runCLI(t, "dataset", "ls", "--prefix", "alp", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "alpine")
	assert.NotContains(t, out, "beta")
}

func TestDataset_ShowMissing(t *testing.T) {
	dir := initRepo(t)

	_, err := runCLI(t, "dataset", "show", "nope", "-C", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPlan_AddAndLs(t *testing.T) {
	dir := initRepo(t)

	_, err := runCLI(t, "plan", "add", "clean-data", "--command", "python clean.py", "-C", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "plan", "ls", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "clean-data")
	assert.Contains(t, out, "python clean.py")
}

func TestRun_RecordsActivity(t *testing.T) {
	dir := initRepo(t)

	_, err := runCLI(t, "plan", "add", "noop", "--command", "true", "-C", dir)
	require.NoError(t, err)
	_, err = runCLI(t, "dataset", "add", "output", "-C", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "run", "noop", "--generated", "output", "--no-exec", "-C", dir)
	require.NoError(t, err, "run output: %s", out)
	assert.Contains(t, out, "Recorded activity")

	out, err = runCLI(t, "status", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Index activities: 1 entries")
}

func TestRun_UnknownPlan(t *testing.T) {
	dir := initRepo(t)

	_, err := runCLI(t, "run", "nope", "-C", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheck_CleanRepository(t *testing.T) {
	dir := initRepo(t)
	_, err := runCLI(t, "dataset", "add", "measurements", "-C", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "check", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
}

func TestCheck_DetectsCorruptRecord(t *testing.T) {
	dir := initRepo(t)

	// Damage a non-root blob in place: drop its envelope. The root must
	// stay intact so the workspace still opens.
	metadata := filepath.Join(dir, strataDir, metadataDir)
	var blob string
	err := filepath.Walk(metadata, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && blob == "" && info.Name() != "root" {
			blob = path
		}
		return err
	})
	require.NoError(t, err)
	require.NotEmpty(t, blob)
	require.NoError(t, os.WriteFile(blob, []byte(`{"name":"no envelope"}`+"\n"), 0o644))

	_, err = runCLI(t, "check", "-C", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSQLiteBackend_EndToEnd(t *testing.T) {
	dir := initRepo(t, "--storage", "sqlite")

	_, err := os.Stat(filepath.Join(dir, strataDir, metadataFile))
	assert.NoError(t, err, "sqlite backend keeps a single database file")

	_, err = runCLI(t, "dataset", "add", "measurements", "-C", dir)
	require.NoError(t, err)

	out, err := runCLI(t, "dataset", "ls", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "measurements")

	out, err = runCLI(t, "check", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
}

func TestFindRoot_WalksUp(t *testing.T) {
	dir := initRepo(t)
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	out, err := runCLI(t, "status", "-C", nested)
	require.NoError(t, err)
	assert.Contains(t, out, "Project: demo")
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := runCLI(t, "status", "--format", "xml", "-C", t.TempDir())
	assert.Error(t, err)
}
