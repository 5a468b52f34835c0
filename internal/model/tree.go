package model

import "strings"

// BuildTree nests a flat, document-ordered sequence of entries by level
// number. Nodes are modified in place and the roots are returned.
//
// Rules: FD/SD entries start a new root and own the 01/77 records that follow
// them; 01 starts a record; 02-49 nest under the nearest open entry with a
// lower level; 66 attaches to the current 01 record; 88 attaches to the entry
// right before it; 77 is a standalone root.
func BuildTree(flat []*VariableNode) []*VariableNode {
	var (
		roots []*VariableNode
		stack []*VariableNode
		last  *VariableNode
	)
	attach := func(parent, n *VariableNode) {
		if parent == nil {
			roots = append(roots, n)
			return
		}
		parent.AddChild(n)
	}
	// fileBase returns the open FD, if any, after dropping everything above it.
	fileBase := func() *VariableNode {
		if len(stack) > 0 && stack[0].Level == LevelFileDescription {
			stack = stack[:1]
			return stack[0]
		}
		stack = stack[:0]
		return nil
	}

	for _, n := range flat {
		switch {
		case n.Level == LevelFileDescription:
			stack = append(stack[:0], n)
			roots = append(roots, n)
		case n.Level == LevelCondition:
			attach(last, n)
			continue
		case n.Level == LevelRenames:
			var record *VariableNode
			for _, s := range stack {
				if s.Level == 1 {
					record = s
				}
			}
			attach(record, n)
			continue
		case n.Level == LevelStandalone:
			stack = stack[:0]
			roots = append(roots, n)
		case n.Level == 1:
			fd := fileBase()
			attach(fd, n)
			stack = append(stack, n)
		default:
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.Level == LevelFileDescription || top.Level < n.Level {
					break
				}
				stack = stack[:len(stack)-1]
			}
			var parent *VariableNode
			if len(stack) > 0 && stack[len(stack)-1].Level != LevelFileDescription {
				parent = stack[len(stack)-1]
			}
			attach(parent, n)
			stack = append(stack, n)
		}
		last = n
	}
	return roots
}

// Flatten returns every node of the forest in document order.
func Flatten(roots []*VariableNode) []*VariableNode {
	var out []*VariableNode
	WalkAll(roots, func(n *VariableNode) bool {
		out = append(out, n)
		return true
	})
	return out
}

// DefinedNames returns the upper-cased names of every named entry, plus the
// index names declared by OCCURS clauses.
func DefinedNames(roots []*VariableNode) map[string]bool {
	names := make(map[string]bool)
	WalkAll(roots, func(n *VariableNode) bool {
		if !n.IsFiller() {
			names[strings.ToUpper(n.Name)] = true
		}
		for _, oc := range n.Occurs {
			for _, idx := range oc.Indexes {
				names[strings.ToUpper(idx.Name)] = true
			}
		}
		return true
	})
	return names
}
