package preprocessor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cobweb/internal/ast"
	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/visitor"
)

const programURI = "file:///src/PROG.cbl"

// fixed renders lines in reference format, starting in area A.
func fixed(lines ...string) string {
	for i, l := range lines {
		lines[i] = "       " + l
	}
	return strings.Join(lines, "\n")
}

// fakeResolver serves copybooks from a map keyed by qualified name.
type fakeResolver struct {
	books map[string]string
	calls []string
	err   error
}

func bookURI(name string) string {
	return "file:///copybooks/" + name + ".cpy"
}

func (f *fakeResolver) Resolve(_ context.Context, name model.CopybookName, _, _ string, _ model.CopybookConfig) (model.CopybookModel, error) {
	f.calls = append(f.calls, name.QualifiedName())
	if f.err != nil {
		return model.CopybookModel{}, f.err
	}
	content, ok := f.books[name.QualifiedName()]
	if !ok {
		return model.PendingCopybook(name), nil
	}
	return model.ResolvedCopybook(name, bookURI(name.QualifiedName()), content), nil
}

func texts(toks []lexer.Token) string {
	parts := make([]string, 0, len(toks))
	for _, tok := range toks {
		parts = append(parts, tok.Text)
	}
	return strings.Join(parts, " ")
}

func codes(diags []model.Diagnostic) []model.ErrorCode {
	out := make([]model.ErrorCode, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func expand(t *testing.T, r *fakeResolver, text string, cfg model.CopybookConfig) *Document {
	t.Helper()
	doc, err := New(r).ExpandDocument(context.Background(), programURI, text, cfg)
	require.NoError(t, err)
	return doc
}

func TestExpand_SplicesCopybook(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"BOOK1": fixed("01 B PIC 9.")}}
	doc := expand(t, r, fixed("WORKING-STORAGE SECTION.", "COPY BOOK1.", "01 A PIC X."), model.CopybookConfig{})

	assert.Empty(t, doc.Errors)
	assert.Equal(t, "WORKING-STORAGE SECTION . 01 B PIC 9 . 01 A PIC X .", texts(doc.Tokens))

	require.Len(t, doc.Copies, 1)
	assert.Equal(t, "BOOK1", doc.Copies[0].Name.Name)
	assert.Equal(t, model.StateResolved, doc.Copies[0].State)
	assert.Equal(t, model.NewLocality(programURI, 1, 12, 1, 17), doc.Copies[0].Locality)

	b := doc.Tokens[4]
	assert.Equal(t, "B", b.Text)
	assert.Equal(t, model.NewLocality(bookURI("BOOK1"), 0, 10, 0, 11), b.Loc)
}

func TestExpand_MissingCopybookReportedOnce(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{}}
	doc := expand(t, r, fixed("WORKING-STORAGE SECTION.", "COPY ABSENT.", "01 A PIC X."), model.CopybookConfig{})

	require.Len(t, doc.Errors, 1)
	d := doc.Errors[0]
	assert.Equal(t, model.CodeMissingCopybook, d.Code)
	assert.Equal(t, "ABSENT: Copybook not found", d.Message)
	assert.Equal(t, model.NewLocality(programURI, 1, 12, 1, 18), d.Locality)
	assert.Equal(t, "WORKING-STORAGE SECTION . 01 A PIC X .", texts(doc.Tokens))
	require.Len(t, doc.Copies, 1)
	assert.Equal(t, model.StatePending, doc.Copies[0].State)
}

func TestExpand_NestedCopybooks(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{
		"OUTER": fixed("01 O PIC X.", "COPY INNER."),
		"INNER": fixed("01 I PIC X."),
	}}
	doc := expand(t, r, fixed("COPY OUTER."), model.CopybookConfig{})
	assert.Empty(t, doc.Errors)
	assert.Equal(t, "01 O PIC X . 01 I PIC X .", texts(doc.Tokens))
	assert.Equal(t, []string{"OUTER", "INNER"}, r.calls)
	assert.Equal(t, bookURI("INNER"), doc.Tokens[5].Loc.URI)
}

func TestExpand_CircularCopyReportedOnce(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{
		"A": fixed("01 FROM-A PIC X.", "COPY B."),
		"B": fixed("01 FROM-B PIC X.", "COPY A."),
	}}
	doc := expand(t, r, fixed("COPY A."), model.CopybookConfig{})

	require.Len(t, doc.Errors, 1)
	d := doc.Errors[0]
	assert.Equal(t, model.CodeCircularCopy, d.Code)
	assert.Equal(t, "Circular copybook reference: A -> B -> A", d.Message)
	assert.Equal(t, model.NewLocality(bookURI("B"), 1, 12, 1, 13), d.Locality)
	assert.Equal(t, "01 FROM-A PIC X . 01 FROM-B PIC X .", texts(doc.Tokens))
}

func TestExpand_SelfCopy(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"SELF": fixed("COPY SELF.")}}
	doc := expand(t, r, fixed("COPY SELF."), model.CopybookConfig{})
	assert.Equal(t, []model.ErrorCode{model.CodeCircularCopy}, codes(doc.Errors))
	assert.Equal(t, "Circular copybook reference: SELF -> SELF", doc.Errors[0].Message)
}

func TestExpand_SameCopybookTwiceIsNotACycle(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"REUSED": fixed("01 R PIC X.")}}
	doc := expand(t, r, fixed("COPY REUSED.", "COPY REUSED."), model.CopybookConfig{})
	assert.Empty(t, doc.Errors)
	assert.Len(t, doc.Copies, 2)
}

func TestExpand_Replacing(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"TMPL": fixed("01 OLD-NAME PIC X(4).")}}
	doc := expand(t, r, fixed("COPY TMPL REPLACING ==OLD-NAME== BY ==NEW-NAME==."), model.CopybookConfig{})
	assert.Empty(t, doc.Errors)
	assert.Equal(t, "01 NEW-NAME PIC X ( 4 ) .", texts(doc.Tokens))
	// Replacement text takes the place of the text it replaced.
	assert.Equal(t, model.NewLocality(bookURI("TMPL"), 0, 10, 0, 18), doc.Tokens[1].Loc)
}

func TestExpand_MalformedReplacingStillExpands(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"TMPL": fixed("01 A PIC X.")}}
	doc := expand(t, r, fixed("COPY TMPL REPLACING ==A== BY.", "01 B PIC X."), model.CopybookConfig{})
	assert.Equal(t, []model.ErrorCode{model.CodeMalformedReplace}, codes(doc.Errors))
	assert.Equal(t, "01 A PIC X . 01 B PIC X .", texts(doc.Tokens))
}

func TestExpand_MissingPeriod(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"BOOK1": fixed("01 B PIC 9.")}}
	doc := expand(t, r, fixed("COPY BOOK1", "01 A PIC X."), model.CopybookConfig{})
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, model.CodeMalformedCopy, doc.Errors[0].Code)
	assert.Equal(t, "Missing '.' after COPY BOOK1", doc.Errors[0].Message)
	assert.Equal(t, model.NewLocality(programURI, 0, 12, 0, 17), doc.Errors[0].Locality)
	assert.Equal(t, "01 B PIC 9 . 01 A PIC X .", texts(doc.Tokens))
}

func TestExpand_MissingName(t *testing.T) {
	t.Parallel()
	doc := expand(t, &fakeResolver{}, fixed("COPY ."), model.CopybookConfig{})
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, model.CodeMalformedCopy, doc.Errors[0].Code)
	assert.Equal(t, "Missing copybook name", doc.Errors[0].Message)
}

func TestExpand_CopyOfLibraryAndQuotedName(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"QUOTED": fixed("01 Q PIC X.")}}
	doc := expand(t, r, fixed(`COPY "quoted" OF MYLIB SUPPRESS.`), model.CopybookConfig{})
	assert.Empty(t, doc.Errors)
	assert.Equal(t, "01 Q PIC X .", texts(doc.Tokens))
}

func TestExpand_SQLInclude(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"SQLCA": fixed("01 SQLCA.", "   05 SQLCODE PIC S9(9) COMP.")}}
	doc := expand(t, r, fixed("EXEC SQL INCLUDE SQLCA END-EXEC.", "01 A PIC X."), model.CopybookConfig{})
	assert.Empty(t, doc.Errors)
	assert.True(t, strings.HasPrefix(texts(doc.Tokens), "01 SQLCA . 05 SQLCODE"))
	assert.Equal(t, []string{"SQLCA"}, r.calls)
}

func TestExpand_DialectCopyLeftInPlace(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{}
	cfg := model.CopybookConfig{Dialects: []string{model.DialectMAID}}
	doc := expand(t, r, fixed("01 P.", "   05 COPY MAID BOOK WRK."), cfg)
	assert.Empty(t, doc.Errors)
	assert.Equal(t, "01 P . 05 COPY MAID BOOK WRK .", texts(doc.Tokens))
	assert.Empty(t, r.calls)
}

func TestExpand_ReplaceDirectiveInProgram(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"BOOK1": fixed("01 FOO PIC X.")}}
	doc := expand(t, r, fixed("REPLACE ==FOO== BY ==BAR==.", "01 FOO PIC X.", "COPY BOOK1."), model.CopybookConfig{})
	assert.Empty(t, doc.Errors)
	// Copybook text is spliced after the program's REPLACE pass.
	assert.Equal(t, "01 BAR PIC X . 01 FOO PIC X .", texts(doc.Tokens))
}

func TestExpand_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&fakeResolver{}).ExpandDocument(ctx, programURI, fixed("COPY A."), model.CopybookConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExpand_ResolverFailureCancels(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{err: context.DeadlineExceeded}
	_, err := New(r).ExpandDocument(context.Background(), programURI, fixed("COPY A."), model.CopybookConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRender_RelexMapsToOrigin(t *testing.T) {
	t.Parallel()
	r := &fakeResolver{books: map[string]string{"BOOK1": fixed("01 B   PIC 9(3).", "   05 C PIC X.")}}
	doc := expand(t, r, fixed("WORKING-STORAGE SECTION.", "COPY BOOK1.", "01 A PIC X."), model.CopybookConfig{})

	relexed, err := lexer.Lex(programURI, doc.Text)
	require.NoError(t, err)
	require.Len(t, relexed, len(doc.Tokens))
	for i, tok := range relexed {
		assert.Equal(t, doc.Tokens[i].Text, tok.Text)
		loc, ok := doc.Mapper.ResolveRange(tok.Loc.Range)
		require.True(t, ok, tok.Text)
		assert.Equal(t, doc.Tokens[i].Loc, loc, tok.Text)
	}
}

func parseData(t *testing.T, doc *Document, cfg model.CopybookConfig) *ast.Node {
	t.Helper()
	res := ast.Parse(doc.Tokens, ast.Options{Dialects: cfg.DialectEnabled})
	require.Empty(t, res.Errors)
	return res.Root
}

func TestProcessor_MaidCopyWithQualifier(t *testing.T) {
	t.Parallel()
	cfg := model.CopybookConfig{Dialects: []string{model.DialectMAID}}
	r := &fakeResolver{books: map[string]string{
		"BHTRGL-XBG_WRK": fixed("09 ANT PIC X.", "09 PIC X.", "09 FILLER PIC x."),
	}}
	e := New(r)
	doc := expand(t, r, fixed("WORKING-STORAGE SECTION.", "01 PARENT.", "    05 COPY MAID BHTRGL-XBG WRK."), cfg)
	proc := e.Processor(Unit{URI: programURI, ProgramURI: programURI, Config: cfg})

	roots, diags, err := visitor.Build(context.Background(), parseData(t, doc, cfg), proc, model.NewHierarchy())
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, roots, 1)
	parent := roots[0]
	assert.Equal(t, "PARENT", parent.Name)
	require.Len(t, parent.Children, 3)
	var names []string
	for _, c := range parent.Children {
		assert.Equal(t, 5, c.Level)
		assert.Equal(t, bookURI("BHTRGL-XBG_WRK"), c.NameLocality.URI)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"ANT", "FILLER", "FILLER"}, names)

	require.Len(t, proc.Copies(), 1)
	assert.Equal(t, "BHTRGL-XBG", proc.Copies()[0].Name.DisplayName())
	assert.Equal(t, model.DialectMAID, proc.Copies()[0].Name.Dialect)
}

func TestProcessor_MissingAndCircular(t *testing.T) {
	t.Parallel()
	cfg := model.CopybookConfig{Dialects: []string{model.DialectMAID}}
	r := &fakeResolver{books: map[string]string{
		"LOOP": fixed("05 L PIC X.", "05 COPY MAID LOOP."),
	}}
	e := New(r)
	doc := expand(t, r, fixed("01 TOP-REC.", "   05 COPY MAID ABSENT.", "   05 COPY MAID LOOP."), cfg)
	proc := e.Processor(Unit{URI: programURI, ProgramURI: programURI, Config: cfg})

	roots, diags, err := visitor.Build(context.Background(), parseData(t, doc, cfg), proc, model.NewHierarchy())
	require.NoError(t, err)
	assert.Equal(t, []model.ErrorCode{model.CodeMissingCopybook, model.CodeCircularCopy}, codes(diags))
	assert.Equal(t, model.NewLocality(programURI, 1, 23, 1, 29), diags[0].Locality)
	assert.Equal(t, bookURI("LOOP"), diags[1].Locality.URI)

	require.Len(t, roots, 1)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "L", roots[0].Children[0].Name)
	assert.Len(t, proc.Copies(), 3)
}

func TestProcessor_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := model.CopybookConfig{Dialects: []string{model.DialectMAID}}
	p := New(&fakeResolver{}).Processor(Unit{URI: programURI, ProgramURI: programURI, Config: cfg})
	_, _, err := p.ProcessCopybook(ctx, &ast.CopyStatement{Dialect: model.DialectMAID, Name: lexer.Token{Kind: lexer.Word, Text: "X"}}, 1, model.NewHierarchy())
	assert.ErrorIs(t, err, ErrCancelled)
}
