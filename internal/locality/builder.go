package locality

import (
	"strings"
	"unicode/utf8"

	protocol "go.lsp.dev/protocol"

	"github.com/jward/cobweb/internal/model"
)

// Builder accumulates merged text and records a span for every mapped piece
// written to it.
type Builder struct {
	sb     strings.Builder
	pos    protocol.Position
	mapper *Mapper
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{mapper: NewMapper()}
}

// Position returns the position the next write will start at.
func (b *Builder) Position() protocol.Position {
	return b.pos
}

// Newline ends the current line.
func (b *Builder) Newline() {
	b.sb.WriteByte('\n')
	b.pos.Line++
	b.pos.Character = 0
}

// Write appends single-line text originating from origin.
func (b *Builder) Write(text string, origin model.Locality) {
	if text == "" {
		return
	}
	start := b.pos
	b.sb.WriteString(text)
	// Runes, matching the lexer's columns.
	b.pos.Character += uint32(utf8.RuneCountInString(text))
	// Writes are sequential, so spans can never overlap.
	_ = b.mapper.RecordSpan(origin.URI, origin.Range, protocol.Range{Start: start, End: b.pos})
}

// Pad appends n spaces originating from origin.
func (b *Builder) Pad(n int, origin model.Locality) {
	if n <= 0 {
		return
	}
	b.Write(strings.Repeat(" ", n), origin)
}

// String returns the merged text.
func (b *Builder) String() string {
	return b.sb.String()
}

// Mapper returns the spans recorded so far.
func (b *Builder) Mapper() *Mapper {
	return b.mapper
}
