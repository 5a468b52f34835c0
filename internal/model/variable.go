package model

import "strings"

// Special level numbers. LevelFileDescription marks FD/SD entries, which have
// no level number in source.
const (
	LevelFileDescription = -1
	LevelRenames         = 66
	LevelStandalone      = 77
	LevelCondition       = 88
)

// NameRef is a referenced name with the locality of the reference.
type NameRef struct {
	Name     string
	Locality Locality
}

// ValueInterval is one VALUE operand, optionally a THRU range.
type ValueInterval struct {
	From string
	To   string
}

// ValueClause is one VALUE clause of an entry.
type ValueClause struct {
	Intervals []ValueInterval
	Locality  Locality
}

// UsageFormat is the normalized USAGE of an entry.
type UsageFormat string

const (
	UsageDisplay          UsageFormat = "DISPLAY"
	UsageDisplay1         UsageFormat = "DISPLAY-1"
	UsageBinary           UsageFormat = "BINARY"
	UsageComp             UsageFormat = "COMP"
	UsageComp1            UsageFormat = "COMP-1"
	UsageComp2            UsageFormat = "COMP-2"
	UsageComp3            UsageFormat = "COMP-3"
	UsageComp4            UsageFormat = "COMP-4"
	UsageComp5            UsageFormat = "COMP-5"
	UsagePackedDecimal    UsageFormat = "PACKED-DECIMAL"
	UsageIndex            UsageFormat = "INDEX"
	UsagePointer          UsageFormat = "POINTER"
	UsageFunctionPointer  UsageFormat = "FUNCTION-POINTER"
	UsageProcedurePointer UsageFormat = "PROCEDURE-POINTER"
	UsageNational         UsageFormat = "NATIONAL"
)

// OccursClause is the table dimension of an entry. Max is nil for fixed-size
// tables. OCCURS DEPENDING ON is accepted syntactically but not modeled.
type OccursClause struct {
	Min     int
	Max     *int
	Indexes []NameRef
}

// VariableNode is one data-description entry of the semantic tree.
type VariableNode struct {
	Level         int
	Name          string
	NameLocality  Locality
	LevelLocality Locality
	Statement     Locality

	Pictures      []string
	Values        []ValueClause
	Usages        []UsageFormat
	Occurs        []OccursClause
	Redefines     []NameRef
	Renames       *NameRef
	RenamesThru   *NameRef
	Global        bool
	Sign          bool
	BlankWhenZero bool

	FileDescriptor  string
	SortDescription bool

	Children []*VariableNode
}

// AddChild appends child to the node's children.
func (n *VariableNode) AddChild(child *VariableNode) {
	n.Children = append(n.Children, child)
}

// IsFiller reports whether the entry has no addressable name.
func (n *VariableNode) IsFiller() bool {
	return n.Name == "" || strings.EqualFold(n.Name, "FILLER")
}

// Kind returns a short classification used by queries and output.
func (n *VariableNode) Kind() string {
	switch {
	case n.Level == LevelFileDescription && n.SortDescription:
		return "sort-description"
	case n.Level == LevelFileDescription:
		return "file-description"
	case n.Level == LevelRenames:
		return "renames"
	case n.Level == LevelStandalone:
		return "standalone"
	case n.Level == LevelCondition:
		return "condition"
	case len(n.Children) > 0 && len(n.Pictures) == 0:
		return "group"
	}
	return "elementary"
}

// Walk visits n and its descendants depth-first in document order. Returning
// false from fn skips the node's children.
func (n *VariableNode) Walk(fn func(*VariableNode) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// WalkAll walks every tree in roots.
func WalkAll(roots []*VariableNode, fn func(*VariableNode) bool) {
	for _, r := range roots {
		r.Walk(fn)
	}
}
