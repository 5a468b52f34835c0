package model

import (
	protocol "go.lsp.dev/protocol"
)

// DiagnosticSource is reported as the source of every diagnostic.
const DiagnosticSource = "cobweb"

// ErrorCode classifies a diagnostic.
type ErrorCode string

const (
	CodeMissingCopybook   ErrorCode = "missing-copybook"
	CodeCircularCopy      ErrorCode = "circular-copy"
	CodeMalformedReplace  ErrorCode = "malformed-replace"
	CodeMalformedCopy     ErrorCode = "malformed-copy"
	CodeSyntaxError       ErrorCode = "syntax-error"
	CodeUndefinedVariable ErrorCode = "undefined-variable"
)

// Diagnostic is a language-level problem attached to an exact source span.
type Diagnostic struct {
	Code     ErrorCode
	Message  string
	Severity protocol.DiagnosticSeverity
	Locality Locality
}

// NewError returns an error-severity diagnostic.
func NewError(code ErrorCode, loc Locality, message string) Diagnostic {
	return Diagnostic{Code: code, Message: message, Severity: protocol.DiagnosticSeverityError, Locality: loc}
}

// NewWarning returns a warning-severity diagnostic.
func NewWarning(code ErrorCode, loc Locality, message string) Diagnostic {
	return Diagnostic{Code: code, Message: message, Severity: protocol.DiagnosticSeverityWarning, Locality: loc}
}

// ToProtocol converts the diagnostic into its editor-protocol form. The URI
// is not part of protocol.Diagnostic; callers group by Locality.URI.
func (d Diagnostic) ToProtocol() protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    d.Locality.Range,
		Severity: d.Severity,
		Code:     string(d.Code),
		Source:   DiagnosticSource,
		Message:  d.Message,
	}
}

// DedupeDiagnostics drops repeated diagnostics (same code, message and
// locality), keeping the first occurrence and the original order. A copybook
// expanded more than once reports its own problems only once.
func DedupeDiagnostics(diags []Diagnostic) []Diagnostic {
	if len(diags) < 2 {
		return diags
	}
	seen := make(map[Diagnostic]bool, len(diags))
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
