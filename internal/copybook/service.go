// Package copybook resolves copybook names to content. Resolution consults
// the workspace, then the built-in copybooks, and finally registers the name
// for a client-side download. Results are cached per including program.
package copybook

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jward/cobweb/internal/model"
)

// ConfigQuery locates a copybook in the workspace. It returns "" when the
// workspace does not know the name. Implementations may block on a round
// trip to the client.
type ConfigQuery interface {
	CopybookURI(ctx context.Context, documentURI string, name model.CopybookName) (string, error)
}

// ContentLookup reads the text behind a URI. A missing file is reported with
// an error matching fs.ErrNotExist.
type ContentLookup interface {
	Read(ctx context.Context, uri string) (string, error)
}

// DownloadRequest asks the client to fetch copybooks that could not be
// resolved locally.
type DownloadRequest struct {
	Document  string
	Copybooks []model.CopybookName
	Verbose   bool
}

// DownloadNotifier delivers download requests to the client.
type DownloadNotifier interface {
	RequestDownload(ctx context.Context, req DownloadRequest) error
}

// Defaults for the owned cache.
const (
	DefaultCacheSize = 3000
	DefaultCacheTTL  = 30 * time.Minute
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for resolution faults and flushes.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithCacheSize bounds the number of cached models. Zero means unbounded.
func WithCacheSize(n int) Option {
	return func(s *Service) { s.cacheSize = n }
}

// WithCacheTTL bounds how long a cached model is served. Zero means forever.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) { s.cacheTTL = d }
}

// WithProviders replaces the predefined content providers.
func WithProviders(f ProviderFactory) Option {
	return func(s *Service) { s.providers = f }
}

// WithNotifier sets where download requests go. Without one, requests are
// only logged.
func WithNotifier(n DownloadNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Service is the copybook resolver shared by concurrent analyses.
type Service struct {
	query     ConfigQuery
	files     ContentLookup
	providers ProviderFactory
	notifier  DownloadNotifier
	log       zerolog.Logger

	cacheSize int
	cacheTTL  time.Duration
	cache     *lruCache[string, model.CopybookModel]

	flight     singleflight.Group
	generation atomic.Uint64

	// writes counts Store calls; stored holds the count at each key's last
	// Store so a resolution that started earlier leaves that key alone.
	writes atomic.Uint64

	mu      sync.Mutex
	pending map[string]map[model.CopybookName]struct{}
	stored  map[string]uint64
}

// New returns a Service resolving through query and files.
func New(query ConfigQuery, files ContentLookup, opts ...Option) *Service {
	s := &Service{
		query:     query,
		files:     files,
		providers: EmbeddedProviders{},
		log:       zerolog.Nop(),
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
		pending:   make(map[string]map[model.CopybookName]struct{}),
		stored:    make(map[string]uint64),
	}
	for _, o := range opts {
		o(s)
	}
	s.cache = newLRUCache[string, model.CopybookModel](s.cacheSize, s.cacheTTL)
	return s
}

// CacheKey identifies a resolution: the same name may resolve differently
// for different including programs.
func CacheKey(name model.CopybookName, programURI string) string {
	return name.QualifiedName() + "#" + name.Dialect + "#" + programURI
}

type flightResult struct {
	model model.CopybookModel
}

// Resolve returns the model for name as included by programURI through the
// document documentURI. At most one resolution runs per key; concurrent
// callers of the same key share it. The only error is ctx's, when the caller
// stops waiting.
func (s *Service) Resolve(ctx context.Context, name model.CopybookName, programURI, documentURI string, cfg model.CopybookConfig) (model.CopybookModel, error) {
	if err := ctx.Err(); err != nil {
		return model.CopybookModel{}, err
	}
	key := CacheKey(name, programURI)
	if m, ok := s.cache.Get(key); ok {
		return m, nil
	}

	gen := s.generation.Load()
	// The computation outlives a cancelled caller so that other callers of
	// the same key still get its result.
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(fmt.Sprintf("%d#%s", gen, key), func() (any, error) {
		if m, ok := s.cache.Get(key); ok {
			return flightResult{m}, nil
		}
		started := s.writes.Load()
		m, fault := s.resolve(detached, name, documentURI, cfg)
		if !fault {
			s.putResolved(key, m, gen, started)
		}
		return flightResult{m}, nil
	})

	select {
	case <-ctx.Done():
		return model.CopybookModel{}, ctx.Err()
	case res := <-ch:
		return res.Val.(flightResult).model, nil
	}
}

// putResolved caches a resolution that began at generation gen after
// started Store calls. It is dropped when the cache was invalidated or the
// key was stored in the meantime.
func (s *Service) putResolved(key string, m model.CopybookModel, gen, started uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation.Load() != gen || s.stored[key] > started {
		return
	}
	s.cache.Put(key, m)
}

// resolve runs the resolution order. fault is set when an underlying error
// forced a missing result; such results are not cached.
func (s *Service) resolve(ctx context.Context, name model.CopybookName, documentURI string, cfg model.CopybookConfig) (m model.CopybookModel, fault bool) {
	fileName := FileName(documentURI)
	log := s.log.With().
		Str("copybook", name.QualifiedName()).
		Str("dialect", name.Dialect).
		Str("document", documentURI).
		Logger()

	uri, err := s.query.CopybookURI(ctx, documentURI, name)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("workspace copybook lookup failed")
	case uri != "":
		content, err := s.files.Read(ctx, uri)
		if err == nil {
			log.Debug().Str("uri", uri).Msg("copybook resolved from workspace")
			return model.ResolvedCopybook(name, uri, content), false
		}
		if errors.Is(err, fs.ErrNotExist) {
			return s.register(name, fileName), false
		}
		log.Warn().Err(err).Str("uri", uri).Msg("reading copybook failed")
		return model.MissingCopybook(name), true
	}

	if p, ok := predefinedCopybooks[name.QualifiedName()]; ok {
		file := p.fileFor(cfg.SQLBackend)
		content, err := s.readPredefined(p.contentType, cfg, file)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("reading predefined copybook failed")
			return model.MissingCopybook(name), true
		}
		return model.ResolvedCopybook(name, ImplicitPrefix+file, content), false
	}
	return s.register(name, fileName), false
}

func (s *Service) readPredefined(contentType string, cfg model.CopybookConfig, file string) (string, error) {
	provider, err := s.providers.Provider(contentType)
	if err != nil {
		return "", err
	}
	return provider.Read(cfg, file)
}

// register records name as awaiting download for the file and returns the
// pending model.
func (s *Service) register(name model.CopybookName, fileName string) model.CopybookModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.pending[fileName]
	if !ok {
		set = make(map[model.CopybookName]struct{})
		s.pending[fileName] = set
	}
	set[name] = struct{}{}
	s.log.Debug().Str("copybook", name.QualifiedName()).Str("file", fileName).Msg("copybook registered for download")
	return model.PendingCopybook(name)
}

// Store overwrites the cached model of m's name for the including program
// documentURI, e.g. with content pushed by the editor. A resolution of the
// same key already in flight does not replace it.
func (s *Service) Store(m model.CopybookModel, documentURI string) {
	key := CacheKey(m.Name, documentURI)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[key] = s.writes.Add(1)
	s.cache.Put(key, m)
}

// InvalidateCache drops every cached model and download registration. The
// next Resolve of any key runs a fresh resolution; resolutions in flight
// finish but do not repopulate the cache.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation.Add(1)
	s.cache.Clear()
	s.pending = make(map[string]map[model.CopybookName]struct{})
	s.stored = make(map[string]uint64)
	s.log.Debug().Msg("copybook cache invalidated")
}

// AnalysisFinished flushes the download registrations of the analyzed
// document and of every copybook it used. When the mode downloads, one
// request carrying all collected names is sent.
func (s *Service) AnalysisFinished(ctx context.Context, ev model.AnalysisFinishedEvent) error {
	uris := append(slices.Clone(ev.CopybookURIs), ev.DocumentURI)

	s.mu.Lock()
	seen := make(map[model.CopybookName]bool)
	var names []model.CopybookName
	for _, uri := range uris {
		fileName := FileName(uri)
		for name := range s.pending[fileName] {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		delete(s.pending, fileName)
	}
	s.mu.Unlock()

	if !ev.Mode.Download() || len(names) == 0 {
		return nil
	}
	slices.SortFunc(names, func(a, b model.CopybookName) int {
		return cmp.Or(cmp.Compare(a.QualifiedName(), b.QualifiedName()), cmp.Compare(a.Dialect, b.Dialect))
	})
	req := DownloadRequest{
		Document:  FileName(ev.DocumentURI),
		Copybooks: names,
		Verbose:   ev.Mode.UserInteraction(),
	}
	s.log.Debug().Str("document", req.Document).Int("copybooks", len(names)).Bool("verbose", req.Verbose).Msg("requesting copybook download")
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.RequestDownload(ctx, req); err != nil {
		return fmt.Errorf("copybook: request download: %w", err)
	}
	return nil
}

// Pending returns a snapshot of the download registrations by file name.
func (s *Service) Pending() map[string][]model.CopybookName {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]model.CopybookName, len(s.pending))
	for file, set := range s.pending {
		names := make([]model.CopybookName, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		slices.SortFunc(names, func(a, b model.CopybookName) int {
			return cmp.Compare(a.String(), b.String())
		})
		out[file] = names
	}
	return out
}

// FileName returns the last path element of a URI.
func FileName(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(uri)
}
