package store

import "sync"

// BatchedStore buffers inserts in memory using fake (negative) IDs so
// analysis workers can record results without touching SQLite. Variables may
// reference a buffered parent through its fake ID; CommitBatch remaps them.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Variables   []Variable
	Diagnostics []Diagnostic
	Usages      []CopybookUsage

	nextFakeID int64 // starts at -1, decrements
}

var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by s for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertVariable(v *Variable) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	v.ID = fakeID
	b.Variables = append(b.Variables, *v)
	return fakeID, nil
}

func (b *BatchedStore) InsertDiagnostic(d *Diagnostic) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Diagnostics = append(b.Diagnostics, *d)
	return fakeID, nil
}

func (b *BatchedStore) InsertCopybookUsage(u *CopybookUsage) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	u.ID = fakeID
	b.Usages = append(b.Usages, *u)
	return fakeID, nil
}

// VariablesByFile returns the variables of a file, merging buffered (not yet
// committed) variables with those already in the database.
func (b *BatchedStore) VariablesByFile(fileID int64) ([]*Variable, error) {
	vars, err := b.store.VariablesByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Variables {
		if b.Variables[i].FileID == fileID {
			vars = append(vars, &b.Variables[i])
		}
	}
	return vars, nil
}
