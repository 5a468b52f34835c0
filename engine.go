package cobweb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jward/cobweb/internal/copybook"
	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/preprocessor"
	"github.com/jward/cobweb/internal/program"
	"github.com/jward/cobweb/internal/store"
	"github.com/jward/cobweb/internal/workspace"
)

// ErrCancelled is returned when an analysis is cancelled. It wraps the
// context's error.
var ErrCancelled = preprocessor.ErrCancelled

// ErrNoDatabase is returned by persistence operations of an Engine created
// without a database path.
var ErrNoDatabase = errors.New("cobweb: engine has no database")

// Engine orchestrates the cobweb pipeline: copy expansion, data hierarchy
// construction, reference checks, persistence of results and query access.
type Engine struct {
	store    *store.Store
	resolver *copybook.Service
	expander *preprocessor.Expander
	log      zerolog.Logger

	config       model.CopybookConfig
	query        copybook.ConfigQuery
	files        copybook.ContentLookup
	copybookOpts []copybook.Option

	// useParallel enables the parallel indexing pipeline.
	useParallel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by the engine and its resolver.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithParallel controls parallel indexing. When true (default), IndexFiles
// analyzes files in a worker pool, with a single writer goroutine committing
// batches to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) { e.useParallel = parallel }
}

// WithCopybookConfig sets the SQL backend and dialects used by every
// analysis. The processing mode is chosen per call.
func WithCopybookConfig(cfg model.CopybookConfig) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithWorkspace sets where copybooks are looked up and read. The default
// finds nothing and reads local files.
func WithWorkspace(query copybook.ConfigQuery, files copybook.ContentLookup) Option {
	return func(e *Engine) {
		e.query = query
		e.files = files
	}
}

// WithCopybookOptions passes options through to the copybook resolver.
func WithCopybookOptions(opts ...copybook.Option) Option {
	return func(e *Engine) { e.copybookOpts = append(e.copybookOpts, opts...) }
}

// New creates an Engine. Results are persisted to a SQLite database at
// dbPath; an empty dbPath gives an analysis-only engine.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		log:         zerolog.Nop(),
		query:       &workspace.Folders{},
		files:       workspace.Files{},
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	if dbPath != "" {
		s, err := store.NewStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("cobweb: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("cobweb: migrate: %w", err)
		}
		e.store = s
	}

	copts := append([]copybook.Option{copybook.WithLogger(e.log)}, e.copybookOpts...)
	e.resolver = copybook.New(e.query, e.files, copts...)
	e.expander = preprocessor.New(e.resolver, preprocessor.WithLogger(e.log))
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the underlying Store for direct access. It is nil for an
// analysis-only engine.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// cancelled maps context errors onto ErrCancelled.
func cancelled(err error) error {
	if err == nil || errors.Is(err, ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return err
}

// analysis is one analyzed document with the program facts the index keeps.
type analysis struct {
	doc       *model.ExtendedDocument
	programID string
}

// Analyze runs the full pipeline on one document: REPLACE processing, copy
// expansion, data hierarchy construction and reference checks. On success
// the resolver is told the analysis finished so pending downloads are
// requested. The only error is ErrCancelled; nothing partial is returned.
func (e *Engine) Analyze(ctx context.Context, uri, text string, mode model.ProcessingMode) (*model.ExtendedDocument, error) {
	a, err := e.analyze(ctx, uri, text, mode)
	if err != nil {
		return nil, err
	}
	return a.doc, nil
}

func (e *Engine) analyze(ctx context.Context, uri, text string, mode model.ProcessingMode) (*analysis, error) {
	cfg := e.config
	cfg.Mode = mode

	expanded, err := e.expander.ExpandDocument(ctx, uri, text, cfg)
	if err != nil {
		return nil, cancelled(err)
	}
	proc := e.expander.Processor(preprocessor.Unit{URI: uri, ProgramURI: uri, Config: cfg})
	prog, err := program.Analyze(ctx, expanded.Tokens, program.Options{Dialects: cfg.DialectEnabled, Processor: proc})
	if err != nil {
		return nil, cancelled(err)
	}

	doc := &model.ExtendedDocument{
		URI:       uri,
		Text:      expanded.Text,
		Errors:    model.DedupeDiagnostics(append(expanded.Errors, prog.Errors...)),
		Nodes:     prog.Nodes,
		Copybooks: append(expanded.Copies, proc.Copies()...),
		Mapping:   expanded.Mapper,
	}
	ev := model.AnalysisFinishedEvent{DocumentURI: uri, CopybookURIs: doc.CopybookURIs(), Mode: mode}
	if err := e.resolver.AnalysisFinished(ctx, ev); err != nil {
		e.log.Warn().Err(err).Str("document", uri).Msg("analysis finished notification failed")
	}
	e.log.Debug().Str("document", uri).Int("errors", len(doc.Errors)).Int("copybooks", len(doc.Copybooks)).Msg("analysis finished")
	return &analysis{doc: doc, programID: prog.ID}, nil
}

// StoreCopybook caches editor-provided content for a copybook as seen from
// documentURI. Later analyses resolve the name to it until the cache is
// invalidated.
func (e *Engine) StoreCopybook(name model.CopybookName, documentURI, uri, content string) {
	e.resolver.Store(model.ResolvedCopybook(name, uri, content), documentURI)
}

// InvalidateCache drops every cached copybook resolution, e.g. after the
// copybook folders changed.
func (e *Engine) InvalidateCache() {
	e.resolver.InvalidateCache()
}

// settingsHash identifies the analysis settings an index was built with.
func (e *Engine) settingsHash() string {
	dialects := slices.Clone(e.config.Dialects)
	slices.Sort(dialects)
	return store.ContentHash([]byte(string(e.config.SQLBackend) + "|" + strings.Join(dialects, ",")))
}

// SettingsChanged reports whether the analysis settings differ from those
// used to build the current database. When true, IndexFiles reanalyzes
// every file instead of skipping unchanged ones.
func (e *Engine) SettingsChanged() bool {
	if e.store == nil {
		return false
	}
	stored, err := e.store.GetMetadata("settings_hash")
	if err != nil || stored == "" {
		return true
	}
	return stored != e.settingsHash()
}

func (e *Engine) storeSettingsHash() {
	_ = e.store.SetMetadata("settings_hash", e.settingsHash())
}

// programExtensions are analyzed as programs. Copybooks (.cpy) are only
// read through COPY statements.
var programExtensions = map[string]bool{
	".cbl":   true,
	".cob":   true,
	".cobol": true,
}

// IsProgramFile reports whether path has a COBOL program extension.
func IsProgramFile(path string) bool {
	return programExtensions[strings.ToLower(filepath.Ext(path))]
}

// IndexFiles analyzes the given program files and records their results.
// When WithParallel is enabled it uses a worker pool with batched SQLite
// writes; otherwise it falls back to the serial path.
//
// For each file:
// 1. Skip files without a program extension
// 2. Skip unchanged files (same content hash, same analysis settings)
// 3. Delete stale data, insert the file record
// 4. Analyze and record variables, diagnostics and copybook usages
//
// Errors on individual files are collected; processing continues.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	if e.store == nil {
		return ErrNoDatabase
	}
	force := e.SettingsChanged()
	var err error
	if e.useParallel {
		err = e.indexFilesParallel(ctx, paths, force)
	} else {
		err = e.indexFilesSerial(ctx, paths, force)
	}
	if err == nil {
		e.storeSettingsHash()
	}
	return err
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string, force bool) error {
	var errs []error
	for _, path := range paths {
		item, skip, err := e.prepareFile(path, force)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		a, err := e.analyze(ctx, workspace.PathToURI(path), item.content, model.ModeDisabled)
		if err != nil {
			errs = append(errs, e.discardFile(item, fmt.Errorf("analyze %s: %w", path, err)))
			continue
		}
		// Serial mode writes straight to SQLite.
		if err := recordDocument(e.store, item.fileID, a.doc); err != nil {
			errs = append(errs, e.discardFile(item, fmt.Errorf("record %s: %w", path, err)))
			continue
		}
		if a.programID != "" {
			if err := e.store.SetProgramID(item.fileID, a.programID); err != nil {
				errs = append(errs, e.discardFile(item, fmt.Errorf("record %s: %w", path, err)))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
}

// IndexDirectory indexes every program file under root. If root is inside
// a git repository, uses git ls-files to respect .gitignore. Falls back to a
// filesystem walk (skipping hidden and build directories) otherwise.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	paths, err := e.gitListFiles(root)
	if err != nil {
		e.log.Debug().Err(err).Str("root", root).Msg("git listing unavailable, walking directory")
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	return e.IndexFiles(ctx, paths)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) program files under root.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if absPath := filepath.Join(root, line); IsProgramFile(absPath) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers program files by walking the filesystem.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsProgramFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// readProgram reads a program file and counts its lines.
func readProgram(path string) ([]byte, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read file: %w", err)
	}
	return content, bytes.Count(content, []byte{'\n'}) + 1, nil
}

// newFileRecord returns the record inserted for a freshly prepared file.
func newFileRecord(path, hash string, lines int) *store.File {
	return &store.File{Path: path, Hash: hash, LineCount: lines, LastIndexed: time.Now()}
}
