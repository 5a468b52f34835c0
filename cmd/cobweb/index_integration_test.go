package main_test

import (
	"database/sql"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the cobweb binary and returns the path.
// The binary is placed in t.TempDir() so it's cleaned up automatically.
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "cobweb"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "cobweb")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot returns the root of the module by walking up from the test
// file's directory to find go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

// createCobolFixture creates a repository with a .git dir, a configuration
// file, one copybook folder and two programs, one of them using a copybook
// that does not exist.
func createCobolFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "copybooks"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write(".cobweb.yaml", "copybook_paths: [copybooks]\ndialects: [MAID]\nlog_level: error\n")
	write("copybooks/CUSTREC.cpy", "       01 CUSTOMER-REC.\n"+
		"          05 CUST-ID   PIC 9(6).\n"+
		"          05 CUST-NAME PIC X(30).\n")
	write("src/CUSTPGM.cbl", "       IDENTIFICATION DIVISION.\n"+
		"       PROGRAM-ID. CUSTPGM.\n"+
		"       DATA DIVISION.\n"+
		"       WORKING-STORAGE SECTION.\n"+
		"       COPY CUSTREC.\n"+
		"       PROCEDURE DIVISION.\n"+
		"           DISPLAY CUST-NAME.\n"+
		"           GOBACK.\n")
	write("src/ORDERPGM.cbl", "       IDENTIFICATION DIVISION.\n"+
		"       PROGRAM-ID. ORDERPGM.\n"+
		"       DATA DIVISION.\n"+
		"       WORKING-STORAGE SECTION.\n"+
		"       COPY ORDREC.\n")
	return dir
}

// run executes the binary in dir and returns its stdout.
func run(t *testing.T, bin, dir string, args ...string) []byte {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	var stderr string
	if ee, ok := err.(*exec.ExitError); ok {
		stderr = string(ee.Stderr)
	}
	require.NoError(t, err, "%v failed: %s%s", args, string(out), stderr)
	return out
}

func openDB(t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func TestIndex_CreatesDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createCobolFixture(t)

	run(t, bin, fixture, "index", fixture)

	dbPath := filepath.Join(fixture, ".cobweb.db")
	_, err := os.Stat(dbPath)
	require.NoError(t, err, ".cobweb.db should exist")

	db := openDB(t, dbPath)
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM files"))
	assert.Equal(t, 3, count(t, db, "SELECT COUNT(*) FROM variables"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM diagnostics WHERE code = 'missing-copybook'"))
}

func TestIndex_Force_ClearsAndReindexes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createCobolFixture(t)
	dbPath := filepath.Join(fixture, ".cobweb.db")

	run(t, bin, fixture, "index", fixture)

	require.NoError(t, os.WriteFile(filepath.Join(fixture, "copybooks", "ORDREC.cpy"),
		[]byte("       01 ORDER-REC PIC X(10).\n"), 0o644))

	// The program did not change, so only --force picks up the new copybook.
	run(t, bin, fixture, "index", fixture)
	db := openDB(t, dbPath)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM diagnostics"))
	db.Close()

	run(t, bin, fixture, "index", "--force", fixture)
	db = openDB(t, dbPath)
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM diagnostics"))
	assert.Equal(t, 4, count(t, db, "SELECT COUNT(*) FROM variables"))
}

func TestQuery_FilesAndMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createCobolFixture(t)
	run(t, bin, fixture, "index", fixture)

	var files struct {
		Command string `json:"command"`
		Results []struct {
			Path      string `json:"path"`
			ProgramID string `json:"program_id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(run(t, bin, fixture, "query", "files"), &files))
	assert.Equal(t, "files", files.Command)
	require.Len(t, files.Results, 2)
	assert.Equal(t, "CUSTPGM", files.Results[0].ProgramID)
	assert.Equal(t, "ORDERPGM", files.Results[1].ProgramID)

	var missing struct {
		Results []struct {
			Name  string   `json:"name"`
			Files []string `json:"files"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(run(t, bin, fixture, "query", "missing"), &missing))
	require.Len(t, missing.Results, 1)
	assert.Equal(t, "ORDREC", missing.Results[0].Name)
	assert.Equal(t, []string{filepath.Join(fixture, "src", "ORDERPGM.cbl")}, missing.Results[0].Files)

	var vars struct {
		Results []struct {
			Name string `json:"name"`
			URI  string `json:"uri"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(run(t, bin, fixture, "query", "variables", "src/CUSTPGM.cbl"), &vars))
	require.Len(t, vars.Results, 3)
	assert.Equal(t, "CUSTOMER-REC", vars.Results[0].Name)
	assert.Contains(t, vars.Results[0].URI, "CUSTREC.cpy")
}

func TestQuery_MissingDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	cmd := exec.Command(bin, "query", "files")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.Error(t, err)

	var res struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &res))
	assert.Contains(t, res.Error, "database not found")
}
