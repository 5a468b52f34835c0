// Package visitor turns parsed data areas into the semantic tree of
// variable definitions, remapping level numbers of included copybooks so
// they nest under the entry that includes them.
package visitor

import (
	"context"

	"github.com/jward/cobweb/internal/ast"
	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/model"
)

// CopybookProcessor expands a dialect copy statement into the flat, already
// remapped entries of the copybook. The returned error is reserved for
// cancellation; problems with the copybook itself are diagnostics.
type CopybookProcessor interface {
	ProcessCopybook(ctx context.Context, stmt *ast.CopyStatement, parentLevel int, hierarchy *model.Hierarchy) ([]*model.VariableNode, []model.Diagnostic, error)
}

// Visit converts the unit of a copybook included at parentLevel (0 when not
// included) into entries in document order. The entries carry no children;
// the includer nests them.
func Visit(ctx context.Context, unit *ast.Node, parentLevel int, proc CopybookProcessor, hierarchy *model.Hierarchy) ([]*model.VariableNode, []model.Diagnostic, error) {
	v := &visitor{proc: proc, hierarchy: hierarchy, parent: parentLevel}
	nodes, err := v.visit(ctx, unit)
	if err != nil {
		return nil, nil, err
	}
	return nodes, v.diags, nil
}

// Build converts a top-level data area into trees. Each section is nested on
// its own so entries never attach across section boundaries.
func Build(ctx context.Context, unit *ast.Node, proc CopybookProcessor, hierarchy *model.Hierarchy) ([]*model.VariableNode, []model.Diagnostic, error) {
	v := &visitor{proc: proc, hierarchy: hierarchy}
	var (
		roots []*model.VariableNode
		loose []*model.VariableNode
	)
	for _, child := range unit.Children {
		nodes, err := v.visit(ctx, child)
		if err != nil {
			return nil, nil, err
		}
		if child.Kind != ast.KindSection {
			loose = append(loose, nodes...)
			continue
		}
		roots = append(roots, model.BuildTree(loose)...)
		loose = nil
		roots = append(roots, model.BuildTree(nodes)...)
	}
	roots = append(roots, model.BuildTree(loose)...)
	return roots, v.diags, nil
}

type visitor struct {
	proc      CopybookProcessor
	hierarchy *model.Hierarchy
	parent    int
	first     int
	diags     []model.Diagnostic
}

// visit returns the entries produced by n and its children in document
// order. A node with no locality of its own contributes only its children.
func (v *visitor) visit(ctx context.Context, n *ast.Node) ([]*model.VariableNode, error) {
	var out []*model.VariableNode
	if _, ok := n.Locality(); ok {
		switch n.Kind {
		case ast.KindDataEntry, ast.KindStandalone:
			out = append(out, v.entry(n))
		case ast.KindRenames:
			out = append(out, v.renames(n))
		case ast.KindCondition:
			if c := v.condition(n); c != nil {
				out = append(out, c)
			}
		case ast.KindFileDescription:
			out = append(out, v.fileDescription(n))
		case ast.KindCopy:
			nodes, err := v.copy(ctx, n)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
	}
	for _, c := range n.Children {
		nodes, err := v.visit(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

// level remaps a level number of an included unit: the first level seen
// becomes the parent level and later ones keep their distance to it.
func (v *visitor) level(n int) int {
	if v.parent == 0 {
		return n
	}
	if v.first == 0 {
		v.first = n
		return v.parent
	}
	return max(n-v.first+v.parent, 1)
}

func (v *visitor) base(n *ast.Node, level int) *model.VariableNode {
	loc, _ := n.Locality()
	vn := &model.VariableNode{Level: level, Name: "FILLER", Statement: loc}
	if n.LevelTok != nil {
		vn.LevelLocality = n.LevelTok.Loc
		vn.NameLocality = n.LevelTok.Loc
	}
	if n.Name != nil {
		vn.Name = n.Name.Text
		vn.NameLocality = n.Name.Loc
	}
	return vn
}

func (v *visitor) entry(n *ast.Node) *model.VariableNode {
	level := model.LevelStandalone
	if n.Kind == ast.KindDataEntry {
		level = v.level(n.Level)
	}
	vn := v.base(n, level)
	c := n.Clauses
	vn.Pictures = c.Pictures
	vn.Values = values(c.Values)
	vn.Usages = c.Usages
	vn.Global = c.Global
	vn.Sign = c.Sign
	vn.BlankWhenZero = c.BlankWhenZero
	for _, oc := range c.Occurs {
		occ := model.OccursClause{Min: oc.Min, Max: oc.Max}
		for _, idx := range oc.Indexes {
			occ.Indexes = append(occ.Indexes, ref(idx))
		}
		vn.Occurs = append(vn.Occurs, occ)
	}
	for _, r := range c.Redefines {
		vn.Redefines = append(vn.Redefines, ref(r))
	}
	return vn
}

func (v *visitor) renames(n *ast.Node) *model.VariableNode {
	vn := v.base(n, model.LevelRenames)
	if r := n.Clauses.Renames; r != nil {
		target := ref(*r)
		vn.Renames = &target
	}
	if r := n.Clauses.RenamesThru; r != nil {
		thru := ref(*r)
		vn.RenamesThru = &thru
	}
	return vn
}

// condition returns nil for a condition name without VALUE.
func (v *visitor) condition(n *ast.Node) *model.VariableNode {
	if len(n.Clauses.Values) == 0 {
		return nil
	}
	vn := v.base(n, model.LevelCondition)
	vn.Values = values(n.Clauses.Values)
	return vn
}

func (v *visitor) fileDescription(n *ast.Node) *model.VariableNode {
	vn := v.base(n, model.LevelFileDescription)
	vn.LevelLocality = n.Start.Loc
	if n.Name == nil {
		vn.NameLocality = n.Start.Loc
	}
	vn.FileDescriptor = n.Descriptor
	vn.SortDescription = n.Sort
	return vn
}

func (v *visitor) copy(ctx context.Context, n *ast.Node) ([]*model.VariableNode, error) {
	if n.Copy == nil || v.proc == nil {
		return nil, nil
	}
	level := v.parent
	if n.Level != 0 {
		level = v.level(n.Level)
	}
	nodes, diags, err := v.proc.ProcessCopybook(ctx, n.Copy, level, v.hierarchy)
	if err != nil {
		return nil, err
	}
	v.diags = append(v.diags, diags...)
	return nodes, nil
}

func values(in []ast.Value) []model.ValueClause {
	var out []model.ValueClause
	for _, val := range in {
		out = append(out, model.ValueClause{
			Intervals: val.Intervals,
			Locality:  val.Start.Loc.Through(val.End.Loc),
		})
	}
	return out
}

func ref(tok lexer.Token) model.NameRef {
	return model.NameRef{Name: tok.Text, Locality: tok.Loc}
}
