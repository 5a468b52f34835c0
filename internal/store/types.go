package store

import "time"

// File is one indexed program.
type File struct {
	ID          int64
	Path        string
	ProgramID   string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

// Span is a zero-based, end-exclusive range in the document URI.
type Span struct {
	URI       string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Variable is one data definition of an indexed program. Entries that come
// from a copybook carry the copybook's URI in their Span.
type Variable struct {
	ID       int64
	FileID   int64
	ParentID *int64
	Name     string
	Level    int
	Kind     string
	Picture  string
	Usage    string
	Span
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	ID       int64
	FileID   int64
	Code     string
	Severity int
	Message  string
	Span
}

// CopybookUsage is one COPY statement met while analyzing a file.
type CopybookUsage struct {
	ID          int64
	FileID      int64
	Name        string
	Qualifier   string
	Dialect     string
	State       string
	CopybookURI string
	Span
}
