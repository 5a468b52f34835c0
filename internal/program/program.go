// Package program analyzes a whole COBOL program from its copy-expanded
// tokens: the IDENTIFICATION paragraphs, the data areas and the data-name
// references of the PROCEDURE DIVISION.
package program

import (
	"context"
	"fmt"

	"github.com/jward/cobweb/internal/ast"
	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/visitor"
)

// Options configures Analyze.
type Options struct {
	// Dialects reports whether a dialect copy statement is enabled.
	Dialects func(dialect string) bool
	// Processor expands dialect copy statements. Nil leaves them empty.
	Processor visitor.CopybookProcessor
}

// Program is the analysis of one source unit. Nested programs contribute
// their data and paragraphs to the same Program.
type Program struct {
	ID         string
	Nodes      []*model.VariableNode
	Paragraphs []model.NameRef
	Errors     []model.Diagnostic
}

type analyzer struct {
	toks      []lexer.Token
	pos       int
	opts      Options
	hierarchy *model.Hierarchy
	prog      *Program
}

// Analyze parses tokens, which must already carry their original
// localities. The only error is the one returned by the copybook processor
// or the context on cancellation.
func Analyze(ctx context.Context, tokens []lexer.Token, opts Options) (*Program, error) {
	a := &analyzer{toks: tokens, opts: opts, hierarchy: model.NewHierarchy(), prog: &Program{}}
	var procedures [][]lexer.Token
	for a.pos < len(a.toks) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("program: %w", err)
		}
		tok := a.peek()
		switch {
		case a.atDivision("IDENTIFICATION", "ID"):
			a.identification()
		case a.atDivision("ENVIRONMENT"):
			a.pos += 2
			a.skipToDivision()
		case a.atDivision("DATA"):
			if err := a.data(ctx); err != nil {
				return nil, err
			}
		case a.atDivision("PROCEDURE"):
			procedures = append(procedures, a.procedure())
		case tok.Is("END") && a.peekAt(1).Is("PROGRAM"):
			a.skipPastPeriod()
		default:
			a.prog.Errors = append(a.prog.Errors, ast.SyntaxError(tok, "IDENTIFICATION", "ID"))
			a.skipToDivision()
		}
	}

	// References are checked once every data area is known, so nested
	// programs see the names of their containing program.
	defined := model.DefinedNames(a.prog.Nodes)
	paragraphs := make(map[string]bool, len(a.prog.Paragraphs))
	for _, p := range a.prog.Paragraphs {
		paragraphs[p.Name] = true
	}
	for _, body := range procedures {
		a.prog.Errors = append(a.prog.Errors, checkReferences(body, defined, paragraphs)...)
	}
	return a.prog, nil
}

func (a *analyzer) peek() lexer.Token {
	return a.peekAt(0)
}

func (a *analyzer) peekAt(offset int) lexer.Token {
	if i := a.pos + offset; i < len(a.toks) {
		return a.toks[i]
	}
	return lexer.Token{Kind: lexer.Punct}
}

func (a *analyzer) atDivision(names ...string) bool {
	return a.peek().IsAny(names...) && a.peekAt(1).Is("DIVISION")
}

// atBoundary reports whether the cursor is at a division header or at the
// end of a program.
func (a *analyzer) atBoundary() bool {
	if a.pos >= len(a.toks) {
		return true
	}
	return a.atDivision(divisionNames...) || (a.peek().Is("END") && a.peekAt(1).Is("PROGRAM"))
}

func (a *analyzer) skipToDivision() {
	for !a.atBoundary() {
		a.pos++
	}
}

func (a *analyzer) skipPastPeriod() {
	for a.pos < len(a.toks) {
		tok := a.toks[a.pos]
		a.pos++
		if tok.Kind == lexer.Period {
			return
		}
	}
}

func (a *analyzer) skipPeriod() {
	if a.peek().Kind == lexer.Period {
		a.pos++
	}
}

// identification parses the IDENTIFICATION DIVISION. The first token that
// starts no known paragraph is reported once and the rest of the division is
// skipped.
func (a *analyzer) identification() {
	a.pos += 2
	a.skipPeriod()
	for !a.atBoundary() {
		tok := a.peek()
		switch {
		case tok.Is("PROGRAM-ID"):
			a.programID()
		case tok.IsAny(commentParagraphs...):
			a.pos++
			a.skipPeriod()
			for !a.atBoundary() && !a.atParagraph() {
				a.pos++
			}
		default:
			a.prog.Errors = append(a.prog.Errors, ast.SyntaxError(tok, identificationExpected...))
			a.skipToDivision()
			return
		}
	}
}

func (a *analyzer) atParagraph() bool {
	tok := a.peek()
	return (tok.Is("PROGRAM-ID") || tok.IsAny(commentParagraphs...)) && a.peekAt(1).Kind == lexer.Period
}

// programID parses `PROGRAM-ID. name [IS] [COMMON|INITIAL|RECURSIVE] [PROGRAM] .`
func (a *analyzer) programID() {
	a.pos++
	a.skipPeriod()
	name := a.peek()
	if a.atBoundary() || (name.Kind != lexer.Word && name.Kind != lexer.String) {
		a.prog.Errors = append(a.prog.Errors, ast.SyntaxError(name, "<program name>"))
		return
	}
	a.pos++
	if a.prog.ID == "" {
		a.prog.ID = model.TrimQuotes(name.Text)
	}
	if a.peek().Is("IS") {
		a.pos++
	}
	for a.peek().IsAny("COMMON", "INITIAL", "RECURSIVE", "PROGRAM") {
		a.pos++
	}
	a.skipPeriod()
}

// data parses one DATA DIVISION and adds its trees to the program.
func (a *analyzer) data(ctx context.Context) error {
	res := ast.Parse(a.toks[a.pos:], ast.Options{Dialects: a.opts.Dialects})
	a.pos += res.Next
	a.prog.Errors = append(a.prog.Errors, res.Errors...)
	roots, diags, err := visitor.Build(ctx, res.Root, a.opts.Processor, a.hierarchy)
	if err != nil {
		return err
	}
	a.prog.Nodes = append(a.prog.Nodes, roots...)
	a.prog.Errors = append(a.prog.Errors, diags...)
	return nil
}

// procedure consumes one PROCEDURE DIVISION, records its paragraph and
// section names and returns its tokens, header operands included.
func (a *analyzer) procedure() []lexer.Token {
	a.pos += 2
	start := a.pos
	a.skipPastPeriod()
	bodyStart := a.pos
	for !a.atBoundary() {
		tok := a.peek()
		if a.pos == bodyStart || a.toks[a.pos-1].Kind == lexer.Period {
			if isProcedureName(tok) && (a.peekAt(1).Kind == lexer.Period || a.peekAt(1).Is("SECTION")) {
				a.prog.Paragraphs = append(a.prog.Paragraphs, model.NameRef{Name: tok.Upper(), Locality: tok.Loc})
			}
		}
		a.pos++
	}
	return a.toks[start:a.pos]
}

func isProcedureName(tok lexer.Token) bool {
	return tok.Kind == lexer.Word && !reservedWords[tok.Upper()] && !tok.IsInteger()
}

// checkReferences reports every word of a procedure body in operand position
// that names neither data nor a procedure.
func checkReferences(body []lexer.Token, defined, paragraphs map[string]bool) []model.Diagnostic {
	var diags []model.Diagnostic
	for i := 0; i < len(body); i++ {
		tok := body[i]
		switch {
		case tok.Is("EXEC"):
			for i < len(body) && !body[i].Is("END-EXEC") {
				i++
			}
		case tok.Is("COPY"):
			for i < len(body) && body[i].Kind != lexer.Period {
				i++
			}
		case tok.Is("FUNCTION"):
			i++
		case tok.Kind != lexer.Word:
		case reservedWords[tok.Upper()], tok.IsInteger():
		case paragraphs[tok.Upper()], defined[tok.Upper()]:
		case i > 0 && body[i-1].IsAny("PERFORM", "TO", "THRU", "THROUGH") && procedureTarget(body, i):
			// unresolved procedure names are not data references
		default:
			diags = append(diags, model.NewError(model.CodeUndefinedVariable, tok.Loc,
				fmt.Sprintf("Variable %s is not defined", tok.Upper())))
		}
	}
	return diags
}

// procedureTarget reports whether body[i] follows PERFORM, GO TO or
// THRU as a procedure name rather than a data operand.
func procedureTarget(body []lexer.Token, i int) bool {
	prev := body[i-1]
	if prev.Is("TO") {
		return i > 1 && body[i-2].Is("GO")
	}
	if prev.Is("PERFORM") {
		return !(i+1 < len(body) && body[i+1].Is("TIMES"))
	}
	return true
}

