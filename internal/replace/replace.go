// Package replace implements pseudo-text substitution: REPLACE directives
// scoped to one source unit and the REPLACING phrase of COPY statements.
package replace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/model"
)

// Mode selects how a pattern matches.
type Mode int

const (
	// Full matches a whole token sequence.
	Full Mode = iota
	// Leading replaces the leading part of a word.
	Leading
	// Trailing replaces the trailing part of a word.
	Trailing
)

// Pair is one `pattern BY replacement` operand pair.
type Pair struct {
	Mode Mode
	From []lexer.Token
	To   []lexer.Token
}

// OperandError reports a malformed operand list.
type OperandError struct {
	Msg string
	// Resume is the index of the first token after the malformed clause.
	Resume int
}

func (e *OperandError) Error() string {
	return e.Msg
}

// Process removes REPLACE directives from one unit's tokens and applies them
// to the tokens that follow. Each directive replaces the active set; REPLACE
// OFF clears it. A malformed directive yields one diagnostic over its span
// and leaves the active set as it was.
func Process(tokens []lexer.Token) ([]lexer.Token, []model.Diagnostic) {
	var (
		out    = make([]lexer.Token, 0, len(tokens))
		diags  []model.Diagnostic
		active []Pair
	)
	for i := 0; i < len(tokens); {
		tok := tokens[i]
		if tok.Is("REPLACE") {
			if i+1 < len(tokens) && tokens[i+1].Is("OFF") {
				end := i + 2
				if end < len(tokens) && tokens[end].Kind == lexer.Period {
					active = nil
					i = end + 1
					continue
				}
				diags = append(diags, malformed(tokens[i:i+2], "REPLACE OFF must end with a period"))
				i += 2
				continue
			}
			start := i + 1
			if start < len(tokens) && tokens[start].Is("ALSO") {
				start++
			}
			pairs, next, err := parseOperands(tokens, start, true)
			if err != nil {
				var oe *OperandError
				next = len(tokens)
				if errors.As(err, &oe) {
					next = oe.Resume
				}
				diags = append(diags, malformed(tokens[i:next], "Malformed REPLACE statement: "+err.Error()))
				i = next
				continue
			}
			active = pairs
			i = next
			continue
		}
		if repl, n := applyAt(tokens, i, active); n > 0 {
			out = append(out, repl...)
			i += n
			continue
		}
		out = append(out, tok)
		i++
	}
	return out, diags
}

// Apply substitutes pairs throughout tokens. Replacement text is not
// rescanned.
func Apply(tokens []lexer.Token, pairs []Pair) []lexer.Token {
	if len(pairs) == 0 {
		return tokens
	}
	out := make([]lexer.Token, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if repl, n := applyAt(tokens, i, pairs); n > 0 {
			out = append(out, repl...)
			i += n
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return out
}

// ParseOperands reads `[LEADING|TRAILING] operand BY operand` pairs from
// tokens[start:] through the terminating period and returns the index after
// it. Operands are pseudo-text, words or literals. Errors are *OperandError.
func ParseOperands(tokens []lexer.Token, start int) ([]Pair, int, error) {
	return parseOperands(tokens, start, false)
}

// parseOperands is ParseOperands; pseudoOnly restricts operands to
// pseudo-text, as the REPLACE directive requires.
func parseOperands(tokens []lexer.Token, start int, pseudoOnly bool) ([]Pair, int, error) {
	var pairs []Pair
	i := start
	fail := func(at int, format string, args ...any) ([]Pair, int, error) {
		return nil, 0, &OperandError{Msg: fmt.Sprintf(format, args...), Resume: recoverEnd(tokens, at, pseudoOnly)}
	}
	for i < len(tokens) && tokens[i].Kind != lexer.Period {
		mode := Full
		switch {
		case tokens[i].Is("LEADING"):
			mode = Leading
			i++
		case tokens[i].Is("TRAILING"):
			mode = Trailing
			i++
		}
		from, next, err := parseOperand(tokens, i, pseudoOnly)
		if err != nil {
			return nil, 0, err
		}
		if len(from) == 0 {
			return fail(next, "empty pseudo-text")
		}
		i = next
		if i >= len(tokens) || !tokens[i].Is("BY") {
			return fail(i, "expected BY")
		}
		i++
		to, next, err := parseOperand(tokens, i, pseudoOnly)
		if err != nil {
			return nil, 0, err
		}
		i = next
		if mode != Full && (!contiguous(from) || !contiguous(to)) {
			return fail(i, "LEADING and TRAILING operands must be partial words")
		}
		pairs = append(pairs, Pair{Mode: mode, From: from, To: to})
	}
	if i >= len(tokens) {
		return fail(i, "missing period")
	}
	if len(pairs) == 0 {
		return fail(i, "no operands")
	}
	return pairs, i + 1, nil
}

func parseOperand(tokens []lexer.Token, i int, pseudoOnly bool) ([]lexer.Token, int, error) {
	if i >= len(tokens) {
		return nil, i, &OperandError{Msg: "missing operand", Resume: i}
	}
	switch {
	case tokens[i].Kind == lexer.PseudoDelim:
		end, stop := closePseudo(tokens, i)
		if end < 0 {
			return nil, i, &OperandError{Msg: "unterminated pseudo-text", Resume: stop}
		}
		return tokens[i+1 : end], end + 1, nil
	case tokens[i].Kind == lexer.Period:
		return nil, i, &OperandError{Msg: "missing operand", Resume: i + 1}
	case pseudoOnly:
		return nil, i, &OperandError{Msg: "expected pseudo-text", Resume: recoverEnd(tokens, i, true)}
	}
	return tokens[i : i+1], i + 1, nil
}

// closePseudo returns the index of the delimiter closing the pseudo-text
// opened at tokens[open]. Pseudo-text never spans a separator period: when
// one comes first, closePseudo returns -1 and the index after that period.
// With neither, it returns -1 and the index after the opening delimiter.
func closePseudo(tokens []lexer.Token, open int) (int, int) {
	for j := open + 1; j < len(tokens); j++ {
		switch {
		case tokens[j].Kind == lexer.PseudoDelim:
			return j, j + 1
		case separatorPeriod(tokens, j):
			return -1, j + 1
		}
	}
	return -1, open + 1
}

// separatorPeriod reports whether tokens[j] is a period followed by a space,
// a line break or the end of the unit.
func separatorPeriod(tokens []lexer.Token, j int) bool {
	return tokens[j].Kind == lexer.Period && (j+1 >= len(tokens) || !tokens[j+1].Joined)
}

// recoverEnd returns the end of a malformed clause whose parse stopped at
// tokens[i]. The clause keeps well-formed pseudo-text and operand keywords
// and ends after a period. When pseudoOnly is set it also ends before the
// first word or literal, which cannot belong to a REPLACE directive. Tokens
// past the end are left to the caller.
func recoverEnd(tokens []lexer.Token, i int, pseudoOnly bool) int {
	for i < len(tokens) {
		switch {
		case tokens[i].Kind == lexer.Period:
			return i + 1
		case tokens[i].Kind == lexer.PseudoDelim:
			end, stop := closePseudo(tokens, i)
			if end < 0 {
				return stop
			}
			i = end + 1
		case tokens[i].IsAny("BY", "LEADING", "TRAILING"), !pseudoOnly:
			i++
		default:
			return i
		}
	}
	return len(tokens)
}

func malformed(span []lexer.Token, msg string) model.Diagnostic {
	loc := span[0].Loc.Through(span[len(span)-1].Loc)
	return model.NewError(model.CodeMalformedReplace, loc, msg)
}

// applyAt tries every pair at tokens[i] in order and returns the replacement
// and the number of tokens consumed, or 0 when nothing matched.
func applyAt(tokens []lexer.Token, i int, pairs []Pair) ([]lexer.Token, int) {
	for _, p := range pairs {
		switch p.Mode {
		case Full:
			if matches(tokens[i:], p.From) {
				return substitute(tokens[i:i+len(p.From)], p.To), len(p.From)
			}
		case Leading, Trailing:
			if tok, ok := replacePart(tokens[i], p); ok {
				if tok.Text == "" {
					return nil, 1
				}
				return []lexer.Token{tok}, 1
			}
		}
	}
	return nil, 0
}

func matches(tokens, pattern []lexer.Token) bool {
	if len(pattern) == 0 || len(tokens) < len(pattern) {
		return false
	}
	for k, p := range pattern {
		if !sameToken(tokens[k], p) {
			return false
		}
	}
	return true
}

func sameToken(a, b lexer.Token) bool {
	if a.Kind == lexer.Word && b.Kind == lexer.Word {
		return strings.EqualFold(a.Text, b.Text)
	}
	return a.Kind == b.Kind && a.Text == b.Text
}

// substitute builds the replacement tokens. They take the locality of the
// whole matched span.
func substitute(matched, to []lexer.Token) []lexer.Token {
	loc := matched[0].Loc.Through(matched[len(matched)-1].Loc)
	out := make([]lexer.Token, 0, len(to))
	for k, t := range to {
		t.Loc = loc
		if k == 0 {
			t.Joined = matched[0].Joined
		}
		out = append(out, t)
	}
	return out
}

// contiguous reports whether the tokens form one unbroken piece of text.
func contiguous(toks []lexer.Token) bool {
	for _, t := range toks[min(1, len(toks)):] {
		if !t.Joined {
			return false
		}
	}
	return true
}

func joinText(toks []lexer.Token) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func replacePart(tok lexer.Token, p Pair) (lexer.Token, bool) {
	if tok.Kind != lexer.Word {
		return tok, false
	}
	pat := joinText(p.From)
	if len(tok.Text) < len(pat) {
		return tok, false
	}
	repl := joinText(p.To)
	switch p.Mode {
	case Leading:
		if !strings.EqualFold(tok.Text[:len(pat)], pat) {
			return tok, false
		}
		tok.Text = repl + tok.Text[len(pat):]
	case Trailing:
		cut := len(tok.Text) - len(pat)
		if !strings.EqualFold(tok.Text[cut:], pat) {
			return tok, false
		}
		tok.Text = tok.Text[:cut] + repl
	}
	return tok, true
}
