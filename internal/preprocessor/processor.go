package preprocessor

import (
	"context"
	"fmt"

	"github.com/jward/cobweb/internal/ast"
	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/visitor"
)

// Processor expands dialect copy statements met while visiting the data area
// of one document. Nested dialect copies get a Processor of their own that
// shares the usage record.
type Processor struct {
	e          *Expander
	programURI string
	uri        string
	cfg        model.CopybookConfig
	copies     *[]model.CopyUsage
}

// Processor returns the dialect copy processor for the document u.URI.
func (e *Expander) Processor(u Unit) *Processor {
	return &Processor{e: e, programURI: u.ProgramURI, uri: u.URI, cfg: u.Config, copies: new([]model.CopyUsage)}
}

// Copies returns every copy statement the processor and its nested
// processors have met, in the order they were met.
func (p *Processor) Copies() []model.CopyUsage {
	return *p.copies
}

// ProcessCopybook implements visitor.CopybookProcessor.
func (p *Processor) ProcessCopybook(ctx context.Context, stmt *ast.CopyStatement, parentLevel int, hierarchy *model.Hierarchy) ([]*model.VariableNode, []model.Diagnostic, error) {
	if err := cancelled(ctx); err != nil {
		return nil, nil, err
	}
	name := stmt.CopybookName()
	at := stmt.Name.Loc
	m, err := p.e.resolver.Resolve(ctx, name, p.programURI, p.uri, p.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	*p.copies = append(*p.copies, model.CopyUsage{Name: name, Locality: at, URI: m.URI, State: m.State})
	if !m.Resolved() {
		return nil, []model.Diagnostic{missing(name, at)}, nil
	}
	if hierarchy.Contains(name) {
		return nil, []model.Diagnostic{circular(name, at, hierarchy)}, nil
	}

	hierarchy.Push(name)
	defer hierarchy.Pop()
	p.e.log.Debug().Str("copybook", name.QualifiedName()).Str("dialect", name.Dialect).Int("level", parentLevel).Msg("processing dialect copybook")

	toks, diags := p.e.tokenize(m, at)
	sub, err := p.e.Expand(ctx, Unit{URI: m.URI, ProgramURI: p.programURI, Tokens: toks, Config: p.cfg}, hierarchy)
	if err != nil {
		return nil, nil, err
	}
	diags = append(diags, sub.Errors...)
	*p.copies = append(*p.copies, sub.Copies...)

	parsed := ast.Parse(sub.Tokens, ast.Options{Dialects: p.cfg.DialectEnabled})
	diags = append(diags, parsed.Errors...)

	nested := &Processor{e: p.e, programURI: p.programURI, uri: m.URI, cfg: p.cfg, copies: p.copies}
	nodes, vdiags, err := visitor.Visit(ctx, parsed.Root, parentLevel, nested, hierarchy)
	if err != nil {
		return nil, nil, err
	}
	return nodes, append(diags, vdiags...), nil
}

var _ visitor.CopybookProcessor = (*Processor)(nil)
