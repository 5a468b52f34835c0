package model

import protocol "go.lsp.dev/protocol"

// PositionResolver maps a position of merged text back to its origin.
type PositionResolver interface {
	Resolve(pos protocol.Position) (Locality, bool)
	ResolveRange(r protocol.Range) (Locality, bool)
}

// CopyUsage records one COPY statement met while analyzing a document.
type CopyUsage struct {
	Name     CopybookName
	Locality Locality
	URI      string
	State    CopybookState
}

// ExtendedDocument is the result of one analysis pass over a document: the
// copy-expanded text, its diagnostics, the data hierarchy and the mapping from
// merged positions back to original documents.
type ExtendedDocument struct {
	URI       string
	Text      string
	Errors    []Diagnostic
	Nodes     []*VariableNode
	Copybooks []CopyUsage
	Mapping   PositionResolver
}

// CopybookURIs returns the distinct URIs of every resolved copybook used by
// the document, nested ones included.
func (d *ExtendedDocument) CopybookURIs() []string {
	seen := make(map[string]bool)
	var uris []string
	for _, u := range d.Copybooks {
		if u.URI == "" || seen[u.URI] {
			continue
		}
		seen[u.URI] = true
		uris = append(uris, u.URI)
	}
	return uris
}
