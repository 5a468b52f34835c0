// Package locality maps positions of copy-expanded text back to the documents
// the text came from.
package locality

import (
	"fmt"
	"sort"

	protocol "go.lsp.dev/protocol"

	"github.com/jward/cobweb/internal/model"
)

// Span maps a range of merged text to a range of an original document.
type Span struct {
	URI      string
	Original protocol.Range
	Merged   protocol.Range
}

// exact reports whether positions inside the span map one-to-one, which holds
// for verbatim single-line text. Other spans (substituted text) map every
// position to the whole original range.
func (s Span) exact() bool {
	return s.Merged.Start.Line == s.Merged.End.Line &&
		s.Original.Start.Line == s.Original.End.Line &&
		s.Merged.End.Character-s.Merged.Start.Character == s.Original.End.Character-s.Original.Start.Character
}

func (s Span) contains(p protocol.Position) bool {
	return model.ComparePositions(s.Merged.Start, p) <= 0 && model.ComparePositions(p, s.Merged.End) < 0
}

func (s Span) mapExact(p protocol.Position) protocol.Position {
	return protocol.Position{
		Line:      s.Original.Start.Line,
		Character: s.Original.Start.Character + (p.Character - s.Merged.Start.Character),
	}
}

// Mapper holds non-overlapping spans ordered by merged position.
type Mapper struct {
	spans []Span
}

// NewMapper returns an empty Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// RecordSpan appends a mapping entry. Entries must be recorded in merged-text
// order without overlap.
func (m *Mapper) RecordSpan(originalURI string, original, merged protocol.Range) error {
	if model.ComparePositions(merged.End, merged.Start) < 0 {
		return fmt.Errorf("locality: inverted merged range %v", merged)
	}
	if n := len(m.spans); n > 0 && model.ComparePositions(merged.Start, m.spans[n-1].Merged.End) < 0 {
		return fmt.Errorf("locality: span at %d:%d overlaps previous span ending at %d:%d",
			merged.Start.Line, merged.Start.Character,
			m.spans[n-1].Merged.End.Line, m.spans[n-1].Merged.End.Character)
	}
	m.spans = append(m.spans, Span{URI: originalURI, Original: original, Merged: merged})
	return nil
}

// Len returns the number of recorded spans.
func (m *Mapper) Len() int {
	return len(m.spans)
}

// Spans returns a copy of the recorded spans.
func (m *Mapper) Spans() []Span {
	out := make([]Span, len(m.spans))
	copy(out, m.spans)
	return out
}

// find returns the index of the last span starting at or before p, or -1.
func (m *Mapper) find(p protocol.Position) int {
	return sort.Search(len(m.spans), func(i int) bool {
		return model.ComparePositions(m.spans[i].Merged.Start, p) > 0
	}) - 1
}

// Resolve returns the origin of a merged position. Positions between spans
// resolve to the end of the preceding span. The result is false only when no
// span precedes p.
func (m *Mapper) Resolve(p protocol.Position) (model.Locality, bool) {
	i := m.find(p)
	if i < 0 {
		return model.Locality{}, false
	}
	s := m.spans[i]
	switch {
	case !s.contains(p):
		return model.Locality{URI: s.URI, Range: protocol.Range{Start: s.Original.End, End: s.Original.End}}, true
	case s.exact():
		o := s.mapExact(p)
		return model.Locality{URI: s.URI, Range: protocol.Range{Start: o, End: o}}, true
	default:
		return model.Locality{URI: s.URI, Range: s.Original}, true
	}
}

// ResolveRange maps a merged range. A range crossing into another document is
// clamped to the span it starts in.
func (m *Mapper) ResolveRange(r protocol.Range) (model.Locality, bool) {
	i := m.find(r.Start)
	if i < 0 {
		return model.Locality{}, false
	}
	start := m.spans[i]
	loc := model.Locality{URI: start.URI}
	switch {
	case !start.contains(r.Start):
		loc.Range = protocol.Range{Start: start.Original.End, End: start.Original.End}
		return loc, true
	case start.exact():
		loc.Range.Start = start.mapExact(r.Start)
	default:
		loc.Range.Start = start.Original.Start
	}

	if model.ComparePositions(r.End, r.Start) <= 0 {
		loc.Range.End = loc.Range.Start
		if !start.exact() {
			loc.Range.End = start.Original.End
		}
		return loc, true
	}

	last := r.End
	if last.Character > 0 {
		last.Character--
	}
	end := m.spans[max(m.find(last), i)]
	switch {
	case end.URI != start.URI:
		loc.Range.End = start.Original.End
	case end.contains(last) && end.exact():
		e := end.mapExact(last)
		e.Character++
		loc.Range.End = e
	default:
		loc.Range.End = end.Original.End
	}
	return loc, true
}

var _ model.PositionResolver = (*Mapper)(nil)
