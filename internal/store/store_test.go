package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path string) *File {
	t.Helper()
	f := &File{Path: path, Hash: "abc123", LineCount: 10, LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

func span(uri string, line int) Span {
	return Span{URI: uri, StartLine: line, StartCol: 7, EndLine: line, EndCol: 12}
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "variables", "diagnostics", "copybook_usages", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Files
// =============================================================================

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/PAYROLL.cbl")
	require.NoError(t, s.SetProgramID(f.ID, "PAYROLL"))

	got, err := s.FileByPath("/src/PAYROLL.cbl")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, "PAYROLL", got.ProgramID)
	assert.Equal(t, "abc123", got.Hash)
	assert.Equal(t, 10, got.LineCount)
}

func TestFile_ByPathNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.FileByPath("/nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFile_DuplicatePathRejected(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/src/A.cbl")
	_, err := s.InsertFile(&File{Path: "/src/A.cbl"})
	assert.Error(t, err)
}

func TestFiles_OrderedByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/src/B.cbl")
	insertTestFile(t, s, "/src/A.cbl")
	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "/src/A.cbl", files[0].Path)
	assert.Equal(t, "/src/B.cbl", files[1].Path)
}

// =============================================================================
// Records
// =============================================================================

func TestVariables_ParentChain(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/A.cbl")

	parentID, err := s.InsertVariable(&Variable{FileID: f.ID, Name: "REC", Level: 1, Kind: "group", Span: span("file:///src/A.cbl", 4)})
	require.NoError(t, err)
	_, err = s.InsertVariable(&Variable{FileID: f.ID, ParentID: ptr(parentID), Name: "FIELD", Level: 5, Kind: "elementary",
		Picture: "X(10)", Usage: "DISPLAY", Span: span("file:///cpy/BOOK.cpy", 0)})
	require.NoError(t, err)

	vars, err := s.VariablesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Nil(t, vars[0].ParentID)
	require.NotNil(t, vars[1].ParentID)
	assert.Equal(t, parentID, *vars[1].ParentID)
	assert.Equal(t, "X(10)", vars[1].Picture)
	assert.Equal(t, "file:///cpy/BOOK.cpy", vars[1].URI)

	byName, err := s.VariablesByName("FIELD")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, f.ID, byName[0].FileID)
}

func TestDiagnostics_OrderedByPosition(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/A.cbl")
	for _, line := range []int{9, 2} {
		_, err := s.InsertDiagnostic(&Diagnostic{FileID: f.ID, Code: "syntax-error", Severity: 1, Message: "bad", Span: span("file:///src/A.cbl", line)})
		require.NoError(t, err)
	}
	diags, err := s.DiagnosticsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, 2, diags[0].StartLine)
	assert.Equal(t, 9, diags[1].StartLine)
}

func TestCopybookUsages_ByState(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/A.cbl")
	_, err := s.InsertCopybookUsage(&CopybookUsage{FileID: f.ID, Name: "BOOK", Dialect: "COBOL", State: "resolved",
		CopybookURI: "file:///cpy/BOOK.cpy", Span: span("file:///src/A.cbl", 3)})
	require.NoError(t, err)
	_, err = s.InsertCopybookUsage(&CopybookUsage{FileID: f.ID, Name: "GONE", Qualifier: "WRK", Dialect: "MAID", State: "pending",
		Span: span("file:///src/A.cbl", 5)})
	require.NoError(t, err)

	all, err := s.CopybookUsagesByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := s.CopybookUsagesByState("pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "GONE", pending[0].Name)
	assert.Equal(t, "WRK", pending[0].Qualifier)
	assert.Empty(t, pending[0].CopybookURI)
}

func TestDeleteFileData_RemovesEverything(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/A.cbl")
	parentID, err := s.InsertVariable(&Variable{FileID: f.ID, Name: "REC", Level: 1, Kind: "group", Span: span("u", 0)})
	require.NoError(t, err)
	_, err = s.InsertVariable(&Variable{FileID: f.ID, ParentID: ptr(parentID), Name: "F", Level: 5, Kind: "elementary", Span: span("u", 1)})
	require.NoError(t, err)
	_, err = s.InsertDiagnostic(&Diagnostic{FileID: f.ID, Code: "c", Message: "m", Span: span("u", 0)})
	require.NoError(t, err)
	_, err = s.InsertCopybookUsage(&CopybookUsage{FileID: f.ID, Name: "B", Dialect: "COBOL", State: "missing", Span: span("u", 0)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFileData(f.ID))

	got, err := s.FileByPath("/src/A.cbl")
	require.NoError(t, err)
	assert.Nil(t, got)
	for _, table := range []string{"variables", "diagnostics", "copybook_usages"} {
		var n int
		require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

// =============================================================================
// Metadata & hashing
// =============================================================================

func TestMetadata_SetAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("config_hash")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("config_hash", "one"))
	require.NoError(t, s.SetMetadata("config_hash", "two"))
	v, err = s.GetMetadata("config_hash")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	a := ContentHash([]byte("       01 A PIC X."))
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash([]byte("       01 A PIC X.")))
	assert.NotEqual(t, a, ContentHash([]byte("       01 B PIC X.")))
}
