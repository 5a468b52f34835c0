package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) variable IDs are remapped to
// real ones; a parent is always buffered before its children.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	for _, v := range batch.Variables {
		if v.ParentID != nil && *v.ParentID < 0 {
			realID, ok := fakeToReal[*v.ParentID]
			if !ok {
				return fmt.Errorf("commit batch: variable %q: parent %d not committed", v.Name, *v.ParentID)
			}
			v.ParentID = &realID
		}
		realID, err := insertVariableTx(tx, &v)
		if err != nil {
			return fmt.Errorf("commit batch: variable %q: %w", v.Name, err)
		}
		fakeToReal[v.ID] = realID
	}

	for _, d := range batch.Diagnostics {
		if _, err := insertDiagnosticTx(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic %q: %w", d.Code, err)
		}
	}

	for _, u := range batch.Usages {
		if _, err := insertCopybookUsageTx(tx, &u); err != nil {
			return fmt.Errorf("commit batch: copybook usage %q: %w", u.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertVariableTx(tx execer, v *Variable) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO variables (file_id, parent_id, name, level, kind, picture, usage, uri, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.FileID, v.ParentID, v.Name, v.Level, v.Kind, v.Picture, v.Usage,
		v.URI, v.StartLine, v.StartCol, v.EndLine, v.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDiagnosticTx(tx execer, d *Diagnostic) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO diagnostics (file_id, code, severity, message, uri, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.Code, d.Severity, d.Message,
		d.URI, d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertCopybookUsageTx(tx execer, u *CopybookUsage) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO copybook_usages (file_id, name, qualifier, dialect, state, copybook_uri, uri, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FileID, u.Name, u.Qualifier, u.Dialect, u.State, u.CopybookURI,
		u.URI, u.StartLine, u.StartCol, u.EndLine, u.EndCol,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
