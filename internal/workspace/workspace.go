// Package workspace implements copybook lookup against local folders for
// the command line, where there is no editor to ask.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jward/cobweb/internal/copybook"
	"github.com/jward/cobweb/internal/model"
)

// DefaultExtensions are tried, in order, after the bare member name.
var DefaultExtensions = []string{".cpy", ".CPY", ".cbl", ".cob", ".copy"}

// PathToURI returns the file URI of a local path.
func PathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// URIToPath returns the local path of a file URI. Other strings are taken
// as paths.
func URIToPath(uri string) (string, error) {
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("workspace: parse uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("workspace: unsupported uri scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// Folders finds copybooks in a list of directories, first match wins.
type Folders struct {
	Dirs       []string
	Extensions []string
}

var _ copybook.ConfigQuery = (*Folders)(nil)

// CopybookURI looks for the member name, as written and in lower case, with
// each extension in every folder.
func (f *Folders) CopybookURI(ctx context.Context, _ string, name model.CopybookName) (string, error) {
	exts := f.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	member := name.QualifiedName()
	candidates := []string{member, strings.ToLower(member)}
	for _, dir := range f.Dirs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for _, base := range candidates {
			for _, ext := range append([]string{""}, exts...) {
				p := filepath.Join(dir, base+ext)
				if st, err := os.Stat(p); err == nil && !st.IsDir() {
					return PathToURI(p), nil
				}
			}
		}
	}
	return "", nil
}

// Files reads file URIs from the local disk.
type Files struct{}

var _ copybook.ContentLookup = Files{}

func (Files) Read(_ context.Context, uri string) (string, error) {
	p, err := URIToPath(uri)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("workspace: %s: %w", uri, fs.ErrNotExist)
		}
		return "", fmt.Errorf("workspace: read %s: %w", uri, err)
	}
	return string(b), nil
}

// LogNotifier reports download requests through a logger. The command line
// has no client to download copybooks, so the request is the user's hint.
type LogNotifier struct {
	Log zerolog.Logger
}

var _ copybook.DownloadNotifier = LogNotifier{}

func (n LogNotifier) RequestDownload(_ context.Context, req copybook.DownloadRequest) error {
	names := make([]string, 0, len(req.Copybooks))
	for _, c := range req.Copybooks {
		names = append(names, c.String())
	}
	ev := n.Log.Info()
	if req.Verbose {
		ev = n.Log.Warn()
	}
	ev.Str("document", req.Document).Strs("copybooks", names).Msg("copybooks not found locally")
	return nil
}
