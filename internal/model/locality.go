// Package model holds the value types shared by every stage of the analysis
// pipeline: copybook identities and resolution results, source localities,
// diagnostics, and the semantic tree of data-description entries.
package model

import (
	"fmt"

	protocol "go.lsp.dev/protocol"
)

// Locality is a source position: the owning document URI and a zero-based,
// end-exclusive line/character range.
type Locality struct {
	URI   string
	Range protocol.Range
}

// NewLocality builds a Locality from raw coordinates.
func NewLocality(uri string, startLine, startChar, endLine, endChar uint32) Locality {
	return Locality{
		URI: uri,
		Range: protocol.Range{
			Start: protocol.Position{Line: startLine, Character: startChar},
			End:   protocol.Position{Line: endLine, Character: endChar},
		},
	}
}

// IsZero reports whether the locality was never set.
func (l Locality) IsZero() bool {
	return l.URI == "" && l.Range == protocol.Range{}
}

// Contains reports whether p lies inside the range (end-exclusive).
func (l Locality) Contains(p protocol.Position) bool {
	return ComparePositions(l.Range.Start, p) <= 0 && ComparePositions(p, l.Range.End) < 0
}

// Through returns a locality spanning from the start of l to the end of other.
// Both must belong to the same document; otherwise l is returned unchanged.
func (l Locality) Through(other Locality) Locality {
	if other.URI != l.URI || ComparePositions(other.Range.End, l.Range.Start) < 0 {
		return l
	}
	return Locality{URI: l.URI, Range: protocol.Range{Start: l.Range.Start, End: other.Range.End}}
}

func (l Locality) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", l.URI,
		l.Range.Start.Line, l.Range.Start.Character,
		l.Range.End.Line, l.Range.End.Character)
}

// ComparePositions orders two positions: negative if a < b, zero if equal,
// positive if a > b.
func ComparePositions(a, b protocol.Position) int {
	switch {
	case a.Line < b.Line:
		return -1
	case a.Line > b.Line:
		return 1
	case a.Character < b.Character:
		return -1
	case a.Character > b.Character:
		return 1
	}
	return 0
}
