package visitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cobweb/internal/ast"
	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/model"
)

func parseUnit(t *testing.T, text string) *ast.Node {
	t.Helper()
	toks, err := lexer.Lex("file:///book.cpy", text)
	require.NoError(t, err)
	cfg := model.CopybookConfig{Dialects: []string{model.DialectMAID}}
	res := ast.Parse(toks, ast.Options{Dialects: cfg.DialectEnabled})
	require.Empty(t, res.Errors)
	return res.Root
}

func levels(nodes []*model.VariableNode) []int {
	out := make([]int, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Level)
	}
	return out
}

// fakeProcessor returns fixed entries for every copy and records the levels
// it was called with.
type fakeProcessor struct {
	calls []int
	nodes []*model.VariableNode
	diags []model.Diagnostic
	err   error
}

func (f *fakeProcessor) ProcessCopybook(_ context.Context, stmt *ast.CopyStatement, parentLevel int, _ *model.Hierarchy) ([]*model.VariableNode, []model.Diagnostic, error) {
	f.calls = append(f.calls, parentLevel)
	return f.nodes, f.diags, f.err
}

func TestVisit_RemapsLevelsUnderParent(t *testing.T) {
	unit := parseUnit(t, `05 FIRST-ITEM.
   09 CHILD-A PIC X.
   09 CHILD-B PIC X.
05 SECOND-ITEM PIC 9.`)
	nodes, diags, err := Visit(context.Background(), unit, 10, nil, model.NewHierarchy())
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []int{10, 14, 14, 10}, levels(nodes))
}

func TestVisit_TopLevelKeepsLevels(t *testing.T) {
	unit := parseUnit(t, "05 A.\n 09 B PIC X.")
	nodes, _, err := Visit(context.Background(), unit, 0, nil, model.NewHierarchy())
	require.NoError(t, err)
	assert.Equal(t, []int{5, 9}, levels(nodes))
}

func TestVisit_SpecialLevelsAreNotRemapped(t *testing.T) {
	unit := parseUnit(t, `03 REC PIC X.
   88 REC-ON VALUE 'Y'.
66 ALIAS RENAMES REC.
77 LONE PIC 9.
04 NEXT-ITEM PIC X.`)
	nodes, _, err := Visit(context.Background(), unit, 5, nil, model.NewHierarchy())
	require.NoError(t, err)
	assert.Equal(t, []int{5, 88, 66, 77, 6}, levels(nodes))
	require.NotNil(t, nodes[2].Renames)
	assert.Equal(t, "REC", nodes[2].Renames.Name)
}

func TestVisit_ConditionWithoutValueIsDropped(t *testing.T) {
	unit := parseUnit(t, "01 FLAG PIC X.\n   88 NO-VALUE.\n   88 YES VALUE 'Y' 'y'.")
	nodes, _, err := Visit(context.Background(), unit, 0, nil, model.NewHierarchy())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "YES", nodes[1].Name)
	require.Len(t, nodes[1].Values, 1)
	assert.Equal(t, []model.ValueInterval{{From: "'Y'"}, {From: "'y'"}}, nodes[1].Values[0].Intervals)
	assert.Equal(t, model.NewLocality("file:///book.cpy", 2, 10, 2, 23), nodes[1].Values[0].Locality)
}

func TestVisit_NodeWithoutLocalitySplicesChildren(t *testing.T) {
	tok := lexer.Token{Kind: lexer.Word, Text: "01", Loc: model.NewLocality("u", 0, 0, 0, 2)}
	name := lexer.Token{Kind: lexer.Word, Text: "INNER", Loc: model.NewLocality("u", 0, 3, 0, 8)}
	inner := &ast.Node{Kind: ast.KindDataEntry, Level: 1, LevelTok: &tok, Start: &tok, Name: &name}
	broken := &ast.Node{Kind: ast.KindDataEntry, Level: 1, Children: []*ast.Node{inner}}
	unit := &ast.Node{Kind: ast.KindUnit, Children: []*ast.Node{broken}}

	nodes, _, err := Visit(context.Background(), unit, 0, nil, model.NewHierarchy())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "INNER", nodes[0].Name)
}

func TestVisit_ClauseExtraction(t *testing.T) {
	unit := parseUnit(t, `01 TBL GLOBAL.
   05 ITEM OCCURS 2 TO 9 DEPENDING ON N INDEXED BY IX PIC X(4) COMP SIGN LEADING BLANK WHEN ZERO.
   05 ALT REDEFINES ITEM PIC X(8).
   05 PIC X.`)
	nodes, _, err := Visit(context.Background(), unit, 0, nil, model.NewHierarchy())
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	assert.True(t, nodes[0].Global)

	item := nodes[1]
	assert.Equal(t, []string{"X(4)"}, item.Pictures)
	assert.Equal(t, []model.UsageFormat{model.UsageComp}, item.Usages)
	require.Len(t, item.Occurs, 1)
	assert.Equal(t, 2, item.Occurs[0].Min)
	assert.Equal(t, 9, *item.Occurs[0].Max)
	assert.Equal(t, "IX", item.Occurs[0].Indexes[0].Name)
	assert.True(t, item.Sign)
	assert.True(t, item.BlankWhenZero)

	require.Len(t, nodes[2].Redefines, 1)
	assert.Equal(t, "ITEM", nodes[2].Redefines[0].Name)

	filler := nodes[3]
	assert.True(t, filler.IsFiller())
	assert.Equal(t, filler.LevelLocality, filler.NameLocality)
}

func TestVisit_DialectCopyUsesRemappedLevel(t *testing.T) {
	unit := parseUnit(t, "03 TOP-REC.\n   07 COPY MAID INNER.\n   07 AFTER-COPY PIC X.")
	proc := &fakeProcessor{
		nodes: []*model.VariableNode{{Level: 9, Name: "FROM-COPY"}},
		diags: []model.Diagnostic{model.NewError(model.CodeMissingCopybook, model.Locality{}, "x")},
	}
	nodes, diags, err := Visit(context.Background(), unit, 10, proc, model.NewHierarchy())
	require.NoError(t, err)
	assert.Equal(t, []int{14}, proc.calls)
	assert.Equal(t, []string{"TOP-REC", "FROM-COPY", "AFTER-COPY"}, []string{nodes[0].Name, nodes[1].Name, nodes[2].Name})
	assert.Equal(t, []int{10, 9, 14}, levels(nodes))
	assert.Len(t, diags, 1)
}

func TestVisit_CancellationPropagates(t *testing.T) {
	unit := parseUnit(t, "05 COPY MAID INNER.")
	proc := &fakeProcessor{err: context.Canceled}
	_, _, err := Visit(context.Background(), unit, 0, proc, model.NewHierarchy())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_NestsPerSection(t *testing.T) {
	toks, err := lexer.Lex("file:///prog.cbl", `WORKING-STORAGE SECTION.
01 PARENT.
   05 COPY MAID BOOK.
   05 OTHER PIC X.
LINKAGE SECTION.
   05 ORPHAN PIC X.`)
	require.NoError(t, err)
	cfg := model.CopybookConfig{Dialects: []string{model.DialectMAID}}
	res := ast.Parse(toks, ast.Options{Dialects: cfg.DialectEnabled})
	require.Empty(t, res.Errors)

	proc := &fakeProcessor{nodes: []*model.VariableNode{
		{Level: 5, Name: "A"}, {Level: 9, Name: "B"}, {Level: 9, Name: "C"},
	}}
	roots, _, err := Build(context.Background(), res.Root, proc, model.NewHierarchy())
	require.NoError(t, err)
	assert.Equal(t, []int{5}, proc.calls)

	require.Len(t, roots, 2)
	parent := roots[0]
	assert.Equal(t, "PARENT", parent.Name)
	require.Len(t, parent.Children, 2)
	assert.Equal(t, "A", parent.Children[0].Name)
	assert.Equal(t, []string{"B", "C"}, []string{parent.Children[0].Children[0].Name, parent.Children[0].Children[1].Name})
	assert.Equal(t, "OTHER", parent.Children[1].Name)
	assert.Equal(t, "ORPHAN", roots[1].Name)
}
