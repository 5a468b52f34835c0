package store

// DataStore is the interface for recording analysis results. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// indexing) implement it.
type DataStore interface {
	// Inserts return the assigned ID.
	InsertVariable(v *Variable) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)
	InsertCopybookUsage(u *CopybookUsage) (int64, error)

	VariablesByFile(fileID int64) ([]*Variable, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
