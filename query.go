package cobweb

import (
	"fmt"
	"slices"

	"github.com/jward/cobweb/internal/store"
)

// QueryBuilder provides a read API over an indexed Store.
type QueryBuilder struct {
	store *store.Store
}

// NewQueryBuilder returns a QueryBuilder over an already opened Store, for
// read-only consumers that do not need an Engine.
func NewQueryBuilder(s *Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// Location is a source range in a document identified by URI.
type Location struct {
	URI       string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func locationOf(s store.Span) Location {
	return Location{URI: s.URI, StartLine: s.StartLine, StartCol: s.StartCol, EndLine: s.EndLine, EndCol: s.EndCol}
}

// fileID looks up the indexed file for path. A path that was never indexed
// yields ok=false and no error.
func (q *QueryBuilder) fileID(path string) (int64, bool, error) {
	if q.store == nil {
		return 0, false, ErrNoDatabase
	}
	f, err := q.store.FileByPath(path)
	if err != nil {
		return 0, false, err
	}
	if f == nil {
		return 0, false, nil
	}
	return f.ID, true, nil
}

// Files returns every indexed file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	if q.store == nil {
		return nil, ErrNoDatabase
	}
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

// Diagnostics returns the diagnostics recorded for the file at path.
func (q *QueryBuilder) Diagnostics(path string) ([]*Diagnostic, error) {
	id, ok, err := q.fileID(path)
	if err != nil || !ok {
		return nil, wrapQuery("diagnostics", err)
	}
	diags, err := q.store.DiagnosticsByFile(id)
	return diags, wrapQuery("diagnostics", err)
}

// Variables returns the data definitions of the file at path in document
// order, copybook entries included.
func (q *QueryBuilder) Variables(path string) ([]*Variable, error) {
	id, ok, err := q.fileID(path)
	if err != nil || !ok {
		return nil, wrapQuery("variables", err)
	}
	vars, err := q.store.VariablesByFile(id)
	return vars, wrapQuery("variables", err)
}

// DefinitionsOf returns where a data name is defined across the index. Name
// matching is case-insensitive.
func (q *QueryBuilder) DefinitionsOf(name string) ([]Location, error) {
	if q.store == nil {
		return nil, ErrNoDatabase
	}
	vars, err := q.store.VariablesByName(name)
	if err != nil {
		return nil, fmt.Errorf("definitions of: %w", err)
	}
	var locs []Location
	for _, v := range vars {
		loc := locationOf(v.Span)
		if !slices.Contains(locs, loc) {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

// CopybookUsages returns the COPY statements met while analyzing the file at
// path, nested ones included.
func (q *QueryBuilder) CopybookUsages(path string) ([]*CopybookUsage, error) {
	id, ok, err := q.fileID(path)
	if err != nil || !ok {
		return nil, wrapQuery("copybook usages", err)
	}
	usages, err := q.store.CopybookUsagesByFile(id)
	return usages, wrapQuery("copybook usages", err)
}

// MissingCopybook is a copybook name no indexed program could resolve,
// together with the programs that use it.
type MissingCopybook struct {
	Name  string
	State string
	Files []string
}

// MissingCopybooks lists copybooks that were missing or awaiting download,
// grouped by name and ordered by name.
func (q *QueryBuilder) MissingCopybooks() ([]MissingCopybook, error) {
	if q.store == nil {
		return nil, ErrNoDatabase
	}
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("missing copybooks: %w", err)
	}
	paths := make(map[int64]string, len(files))
	for _, f := range files {
		paths[f.ID] = f.Path
	}

	byName := make(map[string]*MissingCopybook)
	for _, state := range []string{"missing", "pending"} {
		usages, err := q.store.CopybookUsagesByState(state)
		if err != nil {
			return nil, fmt.Errorf("missing copybooks: %w", err)
		}
		for _, u := range usages {
			name := u.Name
			if u.Qualifier != "" {
				name += "_" + u.Qualifier
			}
			m, ok := byName[name]
			if !ok {
				m = &MissingCopybook{Name: name, State: state}
				byName[name] = m
			}
			if p := paths[u.FileID]; p != "" && !slices.Contains(m.Files, p) {
				m.Files = append(m.Files, p)
			}
		}
	}

	out := make([]MissingCopybook, 0, len(byName))
	for _, m := range byName {
		slices.Sort(m.Files)
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b MissingCopybook) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out, nil
}

func wrapQuery(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
