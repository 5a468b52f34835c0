package copybook

import (
	"embed"
	"fmt"
	"path"

	"github.com/jward/cobweb/internal/model"
)

// ImplicitPrefix marks the URIs of built-in copybooks.
const ImplicitPrefix = "implicit:///"

// ContentTypeEmbedded is served by the provider bundled with the binary.
const ContentTypeEmbedded = "embedded"

//go:embed predefined/*.cpy
var predefinedFS embed.FS

// predefinedCopybook is one entry of the built-in table. Backend variants
// override the default file for a given SQL backend.
type predefinedCopybook struct {
	file        string
	variants    map[model.SQLBackend]string
	contentType string
}

func (p predefinedCopybook) fileFor(backend model.SQLBackend) string {
	if f, ok := p.variants[backend]; ok {
		return f
	}
	return p.file
}

var predefinedCopybooks = map[string]predefinedCopybook{
	"SQLCA": {
		file:        "SQLCA_DB2.cpy",
		variants:    map[model.SQLBackend]string{model.DatacomServer: "SQLCA_DATACOM.cpy"},
		contentType: ContentTypeEmbedded,
	},
	"SQLDA":    {file: "SQLDA.cpy", contentType: ContentTypeEmbedded},
	"DFHEIBLK": {file: "DFHEIBLK.cpy", contentType: ContentTypeEmbedded},
	"DFHAID":   {file: "DFHAID.cpy", contentType: ContentTypeEmbedded},
}

// IsPredefined reports whether name is served from the built-in table.
func IsPredefined(name model.CopybookName) bool {
	_, ok := predefinedCopybooks[name.QualifiedName()]
	return ok
}

// ContentProvider reads the content behind a predefined copybook path.
type ContentProvider interface {
	Read(cfg model.CopybookConfig, file string) (string, error)
}

// ProviderFactory returns the provider serving a content type.
type ProviderFactory interface {
	Provider(contentType string) (ContentProvider, error)
}

// EmbeddedProviders serves the copybooks compiled into the binary.
type EmbeddedProviders struct{}

// Provider implements ProviderFactory.
func (EmbeddedProviders) Provider(contentType string) (ContentProvider, error) {
	if contentType != ContentTypeEmbedded {
		return nil, fmt.Errorf("copybook: no provider for content type %q", contentType)
	}
	return embeddedProvider{}, nil
}

type embeddedProvider struct{}

func (embeddedProvider) Read(_ model.CopybookConfig, file string) (string, error) {
	data, err := predefinedFS.ReadFile(path.Join("predefined", file))
	if err != nil {
		return "", fmt.Errorf("copybook: read predefined %s: %w", file, err)
	}
	return string(data), nil
}
