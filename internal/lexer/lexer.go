// Package lexer turns COBOL reference-format source into located tokens.
//
// Source text is first cleaned of the fixed-format areas (sequence numbers,
// indicator column, identification area, comment lines) without moving any
// character, then split into tokens by a participle rule set. Every token
// carries its exact zero-based, end-exclusive locality in the lexed document.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	plexer "github.com/alecthomas/participle/v2/lexer"
	protocol "go.lsp.dev/protocol"

	"github.com/jward/cobweb/internal/model"
)

// Kind classifies a token.
type Kind int

const (
	Word Kind = iota
	Number
	String
	PseudoDelim
	Period
	Punct
)

func (k Kind) String() string {
	switch k {
	case Word:
		return "word"
	case Number:
		return "number"
	case String:
		return "string"
	case PseudoDelim:
		return "pseudo-text delimiter"
	case Period:
		return "period"
	default:
		return "punct"
	}
}

// Token is one lexical unit with its origin.
type Token struct {
	Kind Kind
	Text string
	Loc  model.Locality
	// Joined is set when no whitespace separates the token from the previous
	// one in its source (e.g. the parts of PIC X(10)).
	Joined bool
}

// Is reports whether the token is the given word, ignoring case.
func (t Token) Is(word string) bool {
	return t.Kind == Word && strings.EqualFold(t.Text, word)
}

// IsAny reports whether the token is one of the given words.
func (t Token) IsAny(words ...string) bool {
	for _, w := range words {
		if t.Is(w) {
			return true
		}
	}
	return false
}

// IsInteger reports whether the token text is an unsigned run of digits,
// such as a level number.
func (t Token) IsInteger() bool {
	if t.Text == "" {
		return false
	}
	for _, r := range t.Text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Upper returns the token text in upper case.
func (t Token) Upper() string {
	return strings.ToUpper(t.Text)
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q @%s", t.Kind, t.Text, t.Loc)
}

// Rule order matters: earlier rules win at the same offset.
var cobolLexer = plexer.MustSimple([]plexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n\f]+|[,;](?:[ \t\r\n\f]+|$)`},
	{Name: "PseudoDelim", Pattern: `==`},
	{Name: "String", Pattern: `(?:[NnXxGgZzBb]|[Nn][Xx])?(?:"(?:[^"\n]|"")*"?|'(?:[^'\n]|'')*'?)`},
	{Name: "Number", Pattern: `[+-]?[0-9]*\.[0-9]+|[+-][0-9]+`},
	{Name: "Word", Pattern: `[A-Za-z0-9$#@][A-Za-z0-9_$#@-]*`},
	{Name: "Period", Pattern: `\.`},
	{Name: "Punct", Pattern: `\S`},
})

var symbolKinds = func() map[plexer.TokenType]Kind {
	syms := cobolLexer.Symbols()
	return map[plexer.TokenType]Kind{
		syms["PseudoDelim"]: PseudoDelim,
		syms["String"]:      String,
		syms["Number"]:      Number,
		syms["Word"]:        Word,
		syms["Period"]:      Period,
		syms["Punct"]:       Punct,
	}
}()

var whitespaceType = cobolLexer.Symbols()["Whitespace"]

// Tokenize cleans reference-format source and lexes it.
func Tokenize(uri, text string) ([]Token, error) {
	return Lex(uri, Clean(text))
}

// Lex splits already-clean text into tokens located in document uri.
func Lex(uri, text string) ([]Token, error) {
	lex, err := cobolLexer.LexString(uri, text)
	if err != nil {
		return nil, fmt.Errorf("lexer: %w", err)
	}
	var (
		tokens  []Token
		prevEnd = -1
	)
	for {
		tok, err := lex.Next()
		if err != nil {
			return tokens, fmt.Errorf("lexer: %s: %w", uri, err)
		}
		if tok.EOF() {
			return tokens, nil
		}
		if tok.Type == whitespaceType {
			continue
		}
		kind, ok := symbolKinds[tok.Type]
		if !ok {
			kind = Punct
		}
		// Characters count runes, not UTF-16 units; the two differ only
		// outside the Basic Multilingual Plane.
		line := uint32(tok.Pos.Line - 1)
		char := uint32(tok.Pos.Column - 1)
		tokens = append(tokens, Token{
			Kind: kind,
			Text: tok.Value,
			Loc: model.Locality{
				URI: uri,
				Range: protocol.Range{
					Start: protocol.Position{Line: line, Character: char},
					End:   protocol.Position{Line: line, Character: char + uint32(utf8.RuneCountInString(tok.Value))},
				},
			},
			Joined: tok.Pos.Offset == prevEnd,
		})
		prevEnd = tok.Pos.Offset + len(tok.Value)
	}
}
