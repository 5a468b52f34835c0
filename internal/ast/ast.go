// Package ast holds the tagged-variant tree of data-description areas and
// the recursive-descent parser that builds it from located tokens.
package ast

import (
	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/model"
)

// Kind tags a Node.
type Kind int

const (
	KindUnit Kind = iota
	KindSection
	KindFileDescription
	KindDataEntry
	KindRenames
	KindCondition
	KindStandalone
	KindCopy
)

var kindNames = [...]string{
	KindUnit:            "unit",
	KindSection:         "section",
	KindFileDescription: "file-description",
	KindDataEntry:       "data-entry",
	KindRenames:         "renames",
	KindCondition:       "condition",
	KindStandalone:      "standalone",
	KindCopy:            "copy",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Node is one element of a parsed data area. Which fields are meaningful
// depends on Kind.
type Node struct {
	Kind Kind

	// Start and End delimit the node's statement. Start is nil when the
	// node has no source text of its own (units, recovered fragments).
	Start *lexer.Token
	End   *lexer.Token

	// Level is the level number as written; 0 for nodes without one.
	Level    int
	LevelTok *lexer.Token
	// Name is nil for unnamed entries.
	Name *lexer.Token

	Clauses Clauses

	// Section name (KindSection).
	Section string
	// Descriptor is the clause text of an FD/SD (KindFileDescription).
	Descriptor string
	Sort       bool

	// Copy is set for KindCopy.
	Copy *CopyStatement

	Children []*Node
}

// Locality returns the statement span, or false when the node has none.
func (n *Node) Locality() (model.Locality, bool) {
	if n.Start == nil {
		return model.Locality{}, false
	}
	if n.End == nil {
		return n.Start.Loc, true
	}
	return n.Start.Loc.Through(n.End.Loc), true
}

// CopyStatement is a dialect copy (`[lvl] COPY MAID name [qual].`,
// `[lvl] COPY IDMS name.`) kept in the data area for the visitor.
type CopyStatement struct {
	Dialect   string
	Name      lexer.Token
	Qualifier *lexer.Token
}

// CopybookName returns the normalized name the statement refers to.
func (c *CopyStatement) CopybookName() model.CopybookName {
	var qual string
	if c.Qualifier != nil {
		qual = c.Qualifier.Text
	}
	return model.NewCopybookName(c.Name.Text, qual, c.Dialect)
}

// Clauses are the data clauses of one entry, in declaration order.
type Clauses struct {
	Pictures      []string
	Values        []Value
	Usages        []model.UsageFormat
	Occurs        []Occurs
	Redefines     []lexer.Token
	Renames       *lexer.Token
	RenamesThru   *lexer.Token
	Global        bool
	External      bool
	Sign          bool
	BlankWhenZero bool
	Justified     bool
	Sync          bool
}

// Value is one VALUE clause.
type Value struct {
	Intervals []model.ValueInterval
	Start     lexer.Token
	End       lexer.Token
}

// Occurs is one OCCURS clause. DependingOn is recorded as written; the
// variable-length semantics are not modeled.
type Occurs struct {
	Min         int
	Max         *int
	DependingOn *lexer.Token
	Keys        []lexer.Token
	Indexes     []lexer.Token
}
