package preprocessor

import (
	"context"

	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/locality"
	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/replace"
)

// Document is a program after REPLACE processing and copy expansion.
type Document struct {
	URI    string
	Text   string
	Mapper *locality.Mapper
	// Tokens are the expanded tokens, located in their original documents.
	Tokens []lexer.Token
	Errors []model.Diagnostic
	Copies []model.CopyUsage
}

// ExpandDocument runs the text stages of the pipeline on one program:
// tokenize, apply REPLACE directives, splice standard copies and render the
// merged text. No partial document is returned on cancellation.
func (e *Expander) ExpandDocument(ctx context.Context, uri, text string, cfg model.CopybookConfig) (*Document, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	var errs []model.Diagnostic
	toks, err := lexer.Tokenize(uri, text)
	if err != nil {
		errs = append(errs, model.NewError(model.CodeSyntaxError, model.NewLocality(uri, 0, 0, 0, 0), err.Error()))
	}
	toks, rdiags := replace.Process(toks)
	errs = append(errs, rdiags...)

	res, err := e.Expand(ctx, Unit{URI: uri, ProgramURI: uri, Tokens: toks, Config: cfg}, model.NewHierarchy())
	if err != nil {
		return nil, err
	}
	merged, mapper := Render(res.Tokens)
	return &Document{
		URI:    uri,
		Text:   merged,
		Mapper: mapper,
		Tokens: res.Tokens,
		Errors: append(errs, res.Errors...),
		Copies: res.Copies,
	}, nil
}
