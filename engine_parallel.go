package cobweb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/store"
	"github.com/jward/cobweb/internal/workspace"
)

// workItem holds everything an indexing worker needs.
type workItem struct {
	path    string
	content string
	lines   int
	fileID  int64
	batch   *store.BatchedStore

	// programID is filled in by the worker and written during commit.
	programID string
}

// indexFilesParallel indexes files using a three-phase parallel pipeline:
//
//	Phase A (serial):   Hash check, delete old data, prepare file records.
//	Phase B (parallel): Analyze via worker pool into per-file batches.
//	Phase C (serial):   Commit batches to SQLite.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string, force bool) error {
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path, force)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}

	// ---- Phase B: Parallel analysis ----
	numWorkers := max(1, min(runtime.NumCPU(), len(items)))

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The resolver is shared; the BatchedStore per item handles
			// write isolation.
			for item := range workCh {
				err := e.analyzeFile(ctx, &item)
				resultCh <- result{item: item, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, e.discardFile(res.item, fmt.Errorf("analyze %s: %w", res.item.path, res.err)))
			continue
		}
		if err := e.commitFile(res.item); err != nil {
			errs = append(errs, e.discardFile(res.item, fmt.Errorf("commit %s: %w", res.item.path, err)))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepareFile does Phase A work for a single file: hash check, cleanup, file
// record. skip=true means the file is unchanged or not a program.
func (e *Engine) prepareFile(path string, force bool) (workItem, bool, error) {
	if !IsProgramFile(path) {
		return workItem{}, true, nil
	}

	content, lines, err := readProgram(path)
	if err != nil {
		return workItem{}, false, err
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && !force {
		return workItem{}, true, nil // unchanged
	}
	if existing != nil {
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	fileID, err := e.store.InsertFile(newFileRecord(path, hash, lines))
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}

	return workItem{
		path:    path,
		content: string(content),
		lines:   lines,
		fileID:  fileID,
		batch:   store.NewBatchedStore(e.store),
	}, false, nil
}

// analyzeFile analyzes one prepared file and records the results into its
// batch. Indexing never asks the client for copybooks.
func (e *Engine) analyzeFile(ctx context.Context, item *workItem) error {
	uri := workspace.PathToURI(item.path)
	a, err := e.analyze(ctx, uri, item.content, model.ModeDisabled)
	if err != nil {
		return err
	}
	item.programID = a.programID
	return recordDocument(item.batch, item.fileID, a.doc)
}

// discardFile removes the record prepareFile inserted for an item whose
// results were never committed, so the next run analyzes it again. It
// returns cause, joined with any cleanup failure.
func (e *Engine) discardFile(item workItem, cause error) error {
	if err := e.store.DeleteFileData(item.fileID); err != nil {
		return errors.Join(cause, fmt.Errorf("discard %s: %w", item.path, err))
	}
	return cause
}

func (e *Engine) commitFile(item workItem) error {
	if err := e.store.CommitBatch(item.batch); err != nil {
		return err
	}
	if item.programID == "" {
		return nil
	}
	return e.store.SetProgramID(item.fileID, item.programID)
}

// recordDocument writes the analysis results of one document through ds.
// Variables are inserted parent first so children can reference the ID the
// store handed out for their parent.
func recordDocument(ds store.DataStore, fileID int64, doc *model.ExtendedDocument) error {
	var insert func(n *model.VariableNode, parent *int64) error
	insert = func(n *model.VariableNode, parent *int64) error {
		v := &store.Variable{
			FileID:   fileID,
			ParentID: parent,
			Name:     n.Name,
			Level:    n.Level,
			Kind:     n.Kind(),
			Picture:  strings.Join(n.Pictures, " "),
			Usage:    joinUsages(n.Usages),
			Span:     spanOf(n.NameLocality),
		}
		id, err := ds.InsertVariable(v)
		if err != nil {
			return fmt.Errorf("insert variable %s: %w", n.Name, err)
		}
		for _, c := range n.Children {
			if err := insert(c, &id); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range doc.Nodes {
		if err := insert(n, nil); err != nil {
			return err
		}
	}

	for _, d := range doc.Errors {
		if _, err := ds.InsertDiagnostic(&store.Diagnostic{
			FileID:   fileID,
			Code:     string(d.Code),
			Severity: int(d.Severity),
			Message:  d.Message,
			Span:     spanOf(d.Locality),
		}); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}

	for _, u := range doc.Copybooks {
		if _, err := ds.InsertCopybookUsage(&store.CopybookUsage{
			FileID:      fileID,
			Name:        u.Name.DisplayName(),
			Qualifier:   u.Name.Qualifier,
			Dialect:     u.Name.Dialect,
			State:       u.State.String(),
			CopybookURI: u.URI,
			Span:        spanOf(u.Locality),
		}); err != nil {
			return fmt.Errorf("insert copybook usage: %w", err)
		}
	}
	return nil
}

func spanOf(l model.Locality) store.Span {
	return store.Span{
		URI:       l.URI,
		StartLine: int(l.Range.Start.Line),
		StartCol:  int(l.Range.Start.Character),
		EndLine:   int(l.Range.End.Line),
		EndCol:    int(l.Range.End.Character),
	}
}

func joinUsages(us []model.UsageFormat) string {
	parts := make([]string, len(us))
	for i, u := range us {
		parts[i] = string(u)
	}
	return strings.Join(parts, " ")
}
