package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, program_id, hash, line_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.ProgramID, f.Hash, f.LineCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// SetProgramID records the PROGRAM-ID found when the file was analyzed.
func (s *Store) SetProgramID(fileID int64, programID string) error {
	if _, err := s.db.Exec("UPDATE files SET program_id = ? WHERE id = ?", programID, fileID); err != nil {
		return fmt.Errorf("set program id: %w", err)
	}
	return nil
}

const fileColumns = "id, path, COALESCE(program_id, ''), COALESCE(hash, ''), COALESCE(line_count, 0), last_indexed"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	if err := scanner.Scan(&f.ID, &f.Path, &f.ProgramID, &f.Hash, &f.LineCount, &f.LastIndexed); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileColumns + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Variable operations ---

func (s *Store) InsertVariable(v *Variable) (int64, error) {
	id, err := insertVariableTx(s.db, v)
	if err != nil {
		return 0, fmt.Errorf("insert variable: %w", err)
	}
	v.ID = id
	return id, nil
}

const variableColumns = `id, file_id, parent_id, name, level, kind, COALESCE(picture, ''), COALESCE(usage, ''),
	uri, start_line, start_col, end_line, end_col`

func (s *Store) queryVariables(query string, args ...any) ([]*Variable, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}
	defer rows.Close()
	var vars []*Variable
	for rows.Next() {
		v := &Variable{}
		if err := rows.Scan(&v.ID, &v.FileID, &v.ParentID, &v.Name, &v.Level, &v.Kind, &v.Picture, &v.Usage,
			&v.URI, &v.StartLine, &v.StartCol, &v.EndLine, &v.EndCol); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

// VariablesByFile returns the variables of a file in definition order.
func (s *Store) VariablesByFile(fileID int64) ([]*Variable, error) {
	return s.queryVariables("SELECT "+variableColumns+" FROM variables WHERE file_id = ? ORDER BY id", fileID)
}

// VariablesByName returns every variable with the given name, ignoring case,
// across files.
func (s *Store) VariablesByName(name string) ([]*Variable, error) {
	return s.queryVariables("SELECT "+variableColumns+" FROM variables WHERE name = ? COLLATE NOCASE ORDER BY file_id, id", name)
}

// --- Diagnostic operations ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	id, err := insertDiagnosticTx(s.db, d)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	d.ID = id
	return id, nil
}

// DiagnosticsByFile returns the diagnostics of a file in position order.
func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, code, severity, message, uri, start_line, start_col, end_line, end_col
		 FROM diagnostics WHERE file_id = ? ORDER BY uri, start_line, start_col, id`, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()
	var diags []*Diagnostic
	for rows.Next() {
		d := &Diagnostic{}
		if err := rows.Scan(&d.ID, &d.FileID, &d.Code, &d.Severity, &d.Message,
			&d.URI, &d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

// --- Copybook usage operations ---

func (s *Store) InsertCopybookUsage(u *CopybookUsage) (int64, error) {
	id, err := insertCopybookUsageTx(s.db, u)
	if err != nil {
		return 0, fmt.Errorf("insert copybook usage: %w", err)
	}
	u.ID = id
	return id, nil
}

func (s *Store) queryUsages(query string, args ...any) ([]*CopybookUsage, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query copybook usages: %w", err)
	}
	defer rows.Close()
	var usages []*CopybookUsage
	for rows.Next() {
		u := &CopybookUsage{}
		if err := rows.Scan(&u.ID, &u.FileID, &u.Name, &u.Qualifier, &u.Dialect, &u.State, &u.CopybookURI,
			&u.URI, &u.StartLine, &u.StartCol, &u.EndLine, &u.EndCol); err != nil {
			return nil, fmt.Errorf("scan copybook usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

const usageColumns = `id, file_id, name, COALESCE(qualifier, ''), dialect, state, COALESCE(copybook_uri, ''),
	uri, start_line, start_col, end_line, end_col`

// CopybookUsagesByFile returns the copy statements met while analyzing a file.
func (s *Store) CopybookUsagesByFile(fileID int64) ([]*CopybookUsage, error) {
	return s.queryUsages("SELECT "+usageColumns+" FROM copybook_usages WHERE file_id = ? ORDER BY id", fileID)
}

// CopybookUsagesByState returns the usages in the given state across files.
func (s *Store) CopybookUsagesByState(state string) ([]*CopybookUsage, error) {
	return s.queryUsages("SELECT "+usageColumns+" FROM copybook_usages WHERE state = ? ORDER BY name, file_id, id", state)
}
