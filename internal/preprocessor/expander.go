// Package preprocessor expands COPY statements. Standard copies are spliced
// into the token stream of the including unit; dialect copies stay in the
// stream and are expanded into data entries by the Processor when the data
// area is visited.
package preprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/replace"
)

// ErrCancelled is returned when the analysis context is done. It wraps the
// context's error.
var ErrCancelled = errors.New("analysis cancelled")

// Resolver resolves copybook names. Its only error is cancellation.
type Resolver interface {
	Resolve(ctx context.Context, name model.CopybookName, programURI, documentURI string, cfg model.CopybookConfig) (model.CopybookModel, error)
}

// Option configures an Expander.
type Option func(*Expander)

// WithLogger sets the Expander's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Expander) { e.log = l }
}

// Expander expands copy statements through a Resolver. It holds no
// per-document state and is safe for concurrent use.
type Expander struct {
	resolver Resolver
	log      zerolog.Logger
}

// New returns an Expander.
func New(r Resolver, opts ...Option) *Expander {
	e := &Expander{resolver: r, log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Unit is one source unit: a program or the content of a copybook.
type Unit struct {
	// URI of the document the tokens were lexed from.
	URI string
	// ProgramURI is the program whose analysis reached this unit.
	ProgramURI string
	Tokens     []lexer.Token
	Config     model.CopybookConfig
}

// Result is the expansion of one unit.
type Result struct {
	Tokens []lexer.Token
	Errors []model.Diagnostic
	Copies []model.CopyUsage
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// Expand splices every standard copy of u, recursively. REPLACE directives of
// u must already be applied. The hierarchy holds the copybooks being expanded
// on the current path and is restored on return.
func (e *Expander) Expand(ctx context.Context, u Unit, hierarchy *model.Hierarchy) (*Result, error) {
	out := &Result{Tokens: make([]lexer.Token, 0, len(u.Tokens))}
	toks := u.Tokens
	for i := 0; i < len(toks); {
		tok := toks[i]
		switch {
		case tok.Is("COPY") && isDialectCopy(toks, i, u.Config):
			out.Tokens = append(out.Tokens, tok)
			i++
		case tok.Is("COPY"):
			if err := cancelled(ctx); err != nil {
				return nil, err
			}
			next, err := e.copyStatement(ctx, u, i, hierarchy, out)
			if err != nil {
				return nil, err
			}
			i = next
		case tok.Is("EXEC") && peek(toks, i+1).Is("SQL") && peek(toks, i+2).Is("INCLUDE"):
			if err := cancelled(ctx); err != nil {
				return nil, err
			}
			next, err := e.sqlInclude(ctx, u, i, hierarchy, out)
			if err != nil {
				return nil, err
			}
			i = next
		default:
			if tok.Kind == lexer.Period {
				if err := cancelled(ctx); err != nil {
					return nil, err
				}
			}
			out.Tokens = append(out.Tokens, tok)
			i++
		}
	}
	return out, nil
}

func peek(toks []lexer.Token, i int) lexer.Token {
	if i < len(toks) {
		return toks[i]
	}
	return lexer.Token{Kind: lexer.Punct}
}

func isDialectCopy(toks []lexer.Token, i int, cfg model.CopybookConfig) bool {
	d := peek(toks, i+1)
	return d.IsAny(model.DialectMAID, model.DialectIDMS) && cfg.DialectEnabled(d.Upper())
}

// copyStatement expands `COPY name [OF|IN lib] [SUPPRESS] [REPLACING ...] .`
// at toks[i] and returns the index after it.
func (e *Expander) copyStatement(ctx context.Context, u Unit, i int, hierarchy *model.Hierarchy, out *Result) (int, error) {
	toks := u.Tokens
	copyTok := toks[i]
	j := i + 1
	nameTok := peek(toks, j)
	if nameTok.Kind != lexer.Word && nameTok.Kind != lexer.String {
		out.Errors = append(out.Errors, model.NewError(model.CodeMalformedCopy, copyTok.Loc, "Missing copybook name"))
		return j, nil
	}
	j++
	last := nameTok
	if peek(toks, j).IsAny("OF", "IN") && peek(toks, j+1).Kind == lexer.Word {
		last = toks[j+1]
		j += 2
	}
	if peek(toks, j).Is("SUPPRESS") {
		last = toks[j]
		j++
	}

	var pairs []replace.Pair
	switch {
	case peek(toks, j).Is("REPLACING"):
		ps, next, err := replace.ParseOperands(toks, j+1)
		if err != nil {
			var oe *replace.OperandError
			next = len(toks)
			if errors.As(err, &oe) {
				next = oe.Resume
			}
			loc := toks[j].Loc.Through(toks[next-1].Loc)
			out.Errors = append(out.Errors, model.NewError(model.CodeMalformedReplace, loc, "Malformed REPLACING phrase: "+err.Error()))
		}
		pairs = ps
		j = next
	case peek(toks, j).Kind == lexer.Period:
		j++
	default:
		out.Errors = append(out.Errors, model.NewError(model.CodeMalformedCopy, last.Loc,
			fmt.Sprintf("Missing '.' after COPY %s", nameTok.Text)))
	}

	name := model.NewCopybookName(nameTok.Text, "", model.DialectCOBOL)
	return j, e.include(ctx, u, name, nameTok.Loc, pairs, hierarchy, out)
}

// sqlInclude expands `EXEC SQL INCLUDE name END-EXEC [.]` at toks[i].
func (e *Expander) sqlInclude(ctx context.Context, u Unit, i int, hierarchy *model.Hierarchy, out *Result) (int, error) {
	toks := u.Tokens
	nameTok := peek(toks, i+3)
	if nameTok.Kind != lexer.Word && nameTok.Kind != lexer.String {
		out.Errors = append(out.Errors, model.NewError(model.CodeMalformedCopy, toks[i+2].Loc, "Missing copybook name"))
		return i + 3, nil
	}
	j := i + 4
	if peek(toks, j).Is("END-EXEC") {
		j++
		if peek(toks, j).Kind == lexer.Period {
			j++
		}
	} else {
		out.Errors = append(out.Errors, model.NewError(model.CodeMalformedCopy, nameTok.Loc, "Missing END-EXEC"))
	}
	name := model.NewCopybookName(nameTok.Text, "", model.DialectCOBOL)
	return j, e.include(ctx, u, name, nameTok.Loc, nil, hierarchy, out)
}

// include resolves name and splices its expanded tokens into out.
func (e *Expander) include(ctx context.Context, u Unit, name model.CopybookName, at model.Locality, pairs []replace.Pair, hierarchy *model.Hierarchy, out *Result) error {
	m, err := e.resolver.Resolve(ctx, name, u.ProgramURI, u.URI, u.Config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	out.Copies = append(out.Copies, model.CopyUsage{Name: name, Locality: at, URI: m.URI, State: m.State})
	if !m.Resolved() {
		out.Errors = append(out.Errors, missing(name, at))
		return nil
	}
	if hierarchy.Contains(name) {
		out.Errors = append(out.Errors, circular(name, at, hierarchy))
		return nil
	}
	if err := cancelled(ctx); err != nil {
		return err
	}

	hierarchy.Push(name)
	defer hierarchy.Pop()
	e.log.Debug().Str("copybook", name.QualifiedName()).Str("uri", m.URI).Int("depth", hierarchy.Len()).Msg("expanding copybook")

	toks, diags := e.tokenize(m, at)
	out.Errors = append(out.Errors, diags...)
	sub, err := e.Expand(ctx, Unit{URI: m.URI, ProgramURI: u.ProgramURI, Tokens: toks, Config: u.Config}, hierarchy)
	if err != nil {
		return err
	}
	out.Errors = append(out.Errors, sub.Errors...)
	out.Copies = append(out.Copies, sub.Copies...)
	out.Tokens = append(out.Tokens, replace.Apply(sub.Tokens, pairs)...)
	return nil
}

// tokenize lexes copybook content and applies its own REPLACE directives.
func (e *Expander) tokenize(m model.CopybookModel, at model.Locality) ([]lexer.Token, []model.Diagnostic) {
	var diags []model.Diagnostic
	toks, err := lexer.Tokenize(m.URI, m.Content)
	if err != nil {
		diags = append(diags, model.NewError(model.CodeSyntaxError, at, err.Error()))
	}
	toks, rdiags := replace.Process(toks)
	return toks, append(diags, rdiags...)
}

func missing(name model.CopybookName, at model.Locality) model.Diagnostic {
	return model.NewError(model.CodeMissingCopybook, at, fmt.Sprintf("%s: Copybook not found", name.DisplayName()))
}

func circular(name model.CopybookName, at model.Locality, hierarchy *model.Hierarchy) model.Diagnostic {
	return model.NewError(model.CodeCircularCopy, at, "Circular copybook reference: "+hierarchy.Cycle(name))
}
