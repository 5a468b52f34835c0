package preprocessor

import (
	protocol "go.lsp.dev/protocol"

	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/locality"
	"github.com/jward/cobweb/internal/model"
)

// Render lays tokens out as merged text and records where every character
// came from. A token keeps its original column when it starts a line and its
// original distance to the previous token on the same line; glued tokens stay
// glued. Lexing the result yields the same token sequence.
func Render(tokens []lexer.Token) (string, *locality.Mapper) {
	b := locality.NewBuilder()
	var prev *lexer.Token
	for i := range tokens {
		tok := &tokens[i]
		start := tok.Loc.Range.Start
		switch {
		case prev == nil:
			b.Pad(int(start.Character), lineStart(tok.Loc))
		case tok.Joined:
		case prev.Loc.URI == tok.Loc.URI && prev.Loc.Range.End.Line == start.Line:
			end := prev.Loc.Range.End
			if start.Character > end.Character {
				gap := model.Locality{URI: tok.Loc.URI, Range: protocol.Range{Start: end, End: start}}
				b.Pad(int(start.Character-end.Character), gap)
			} else {
				b.Pad(1, tok.Loc)
			}
		default:
			b.Newline()
			b.Pad(int(start.Character), lineStart(tok.Loc))
		}
		b.Write(tok.Text, tok.Loc)
		prev = tok
	}
	return b.String(), b.Mapper()
}

// lineStart is the span from column 0 to the start of loc.
func lineStart(loc model.Locality) model.Locality {
	start := loc.Range.Start
	return model.Locality{
		URI:   loc.URI,
		Range: protocol.Range{Start: protocol.Position{Line: start.Line}, End: start},
	}
}
