package model

import (
	"fmt"
	"strings"
)

// Dialect tags. DialectCOBOL marks plain COBOL copybooks.
const (
	DialectCOBOL = "COBOL"
	DialectMAID  = "MAID"
	DialectIDMS  = "IDMS"
)

// CopybookName identifies a copybook: its name as written, an optional member
// qualifier (MAID `COPY MAID NAME QUAL` selects member NAME_QUAL) and the
// dialect that introduced it.
type CopybookName struct {
	Name      string
	Qualifier string
	Dialect   string
}

// NewCopybookName normalizes a raw operand: quotes trimmed, case folded.
func NewCopybookName(raw, qualifier, dialect string) CopybookName {
	if dialect == "" {
		dialect = DialectCOBOL
	}
	return CopybookName{
		Name:      strings.ToUpper(TrimQuotes(raw)),
		Qualifier: strings.ToUpper(TrimQuotes(qualifier)),
		Dialect:   dialect,
	}
}

// QualifiedName is the member name used for lookup.
func (n CopybookName) QualifiedName() string {
	if n.Qualifier == "" {
		return n.Name
	}
	return n.Name + "_" + n.Qualifier
}

// DisplayName is the name shown to users.
func (n CopybookName) DisplayName() string {
	return n.Name
}

func (n CopybookName) String() string {
	return fmt.Sprintf("%s[%s]", n.QualifiedName(), n.Dialect)
}

// TrimQuotes removes one pair of matching surrounding quotes.
func TrimQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// CopybookState is the tri-state outcome of a resolution.
type CopybookState int

const (
	// StateMissing: workspace and predefined sources were checked (or failed)
	// and no content exists.
	StateMissing CopybookState = iota
	// StatePending: no source answered; the name is registered for a
	// client-side download.
	StatePending
	// StateResolved: URI and content are both present.
	StateResolved
)

func (s CopybookState) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StatePending:
		return "pending"
	default:
		return "missing"
	}
}

// CopybookModel is the result of resolving a CopybookName. URI and Content are
// set if and only if State is StateResolved.
type CopybookModel struct {
	Name    CopybookName
	URI     string
	Content string
	State   CopybookState
}

// ResolvedCopybook returns a model carrying content.
func ResolvedCopybook(name CopybookName, uri, content string) CopybookModel {
	return CopybookModel{Name: name, URI: uri, Content: content, State: StateResolved}
}

// MissingCopybook returns a content-absent model for a known-missing copybook.
func MissingCopybook(name CopybookName) CopybookModel {
	return CopybookModel{Name: name, State: StateMissing}
}

// PendingCopybook returns a content-absent model awaiting download.
func PendingCopybook(name CopybookName) CopybookModel {
	return CopybookModel{Name: name, State: StatePending}
}

// Resolved reports whether content is available.
func (m CopybookModel) Resolved() bool {
	return m.State == StateResolved
}

// Hierarchy is the ordered set of copybooks on the current expansion path.
// It is owned by a single document analysis and never shared.
type Hierarchy struct {
	path []CopybookName
}

// NewHierarchy returns an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{}
}

// Push appends name to the current path.
func (h *Hierarchy) Push(name CopybookName) {
	h.path = append(h.path, name)
}

// Pop removes the innermost copybook.
func (h *Hierarchy) Pop() {
	if len(h.path) > 0 {
		h.path = h.path[:len(h.path)-1]
	}
}

// Contains reports whether name is already being expanded.
func (h *Hierarchy) Contains(name CopybookName) bool {
	for _, n := range h.path {
		if n == name {
			return true
		}
	}
	return false
}

// Len returns the current expansion depth.
func (h *Hierarchy) Len() int {
	return len(h.path)
}

// Path returns a copy of the current path, outermost first.
func (h *Hierarchy) Path() []CopybookName {
	out := make([]CopybookName, len(h.path))
	copy(out, h.path)
	return out
}

// Cycle renders the path from the first occurrence of name back to name,
// e.g. "A -> B -> A".
func (h *Hierarchy) Cycle(name CopybookName) string {
	var parts []string
	found := false
	for _, n := range h.path {
		if n == name {
			found = true
		}
		if found {
			parts = append(parts, n.DisplayName())
		}
	}
	parts = append(parts, name.DisplayName())
	return strings.Join(parts, " -> ")
}
