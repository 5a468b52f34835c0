package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLILocation is a 0-based source range.
type CLILocation struct {
	URI       string `json:"uri"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	CLILocation
}

// CLIVariable is a JSON-friendly data definition. Analyze output nests
// children; query output is flat and links parents by ID.
type CLIVariable struct {
	ID       int64         `json:"id,omitempty"`
	ParentID *int64        `json:"parent_id,omitempty"`
	Name     string        `json:"name"`
	Level    int           `json:"level"`
	Kind     string        `json:"kind"`
	Picture  string        `json:"picture,omitempty"`
	Usage    string        `json:"usage,omitempty"`
	Children []CLIVariable `json:"children,omitempty"`
	CLILocation
}

// CLICopybook is one COPY statement and how it resolved.
type CLICopybook struct {
	Name        string `json:"name"`
	Qualifier   string `json:"qualifier,omitempty"`
	Dialect     string `json:"dialect"`
	State       string `json:"state"`
	CopybookURI string `json:"copybook_uri,omitempty"`
	CLILocation
}

// CLIAnalysis is the result of analyzing one program.
type CLIAnalysis struct {
	URI         string          `json:"uri"`
	Diagnostics []CLIDiagnostic `json:"diagnostics"`
	Variables   []CLIVariable   `json:"variables"`
	Copybooks   []CLICopybook   `json:"copybooks"`
}

// CLIFile is a JSON-friendly indexed file.
type CLIFile struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	ProgramID   string `json:"program_id,omitempty"`
	LineCount   int    `json:"line_count"`
	LastIndexed string `json:"last_indexed"`
}

// CLIMissingCopybook is a copybook no indexed program could resolve.
type CLIMissingCopybook struct {
	Name  string   `json:"name"`
	State string   `json:"state"`
	Files []string `json:"files"`
}
