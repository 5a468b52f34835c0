package model

import (
	"fmt"
	"slices"
	"strings"
)

// ProcessingMode controls whether missing copybooks are requested from the
// client and whether the request may interact with the user.
type ProcessingMode int

const (
	ModeEnabled ProcessingMode = iota
	ModeEnabledVerbose
	ModeDisabled
)

// Download reports whether the mode issues download requests.
func (m ProcessingMode) Download() bool {
	return m == ModeEnabled || m == ModeEnabledVerbose
}

// UserInteraction reports whether download requests may prompt the user.
func (m ProcessingMode) UserInteraction() bool {
	return m == ModeEnabledVerbose
}

func (m ProcessingMode) String() string {
	switch m {
	case ModeEnabledVerbose:
		return "enabled_verbose"
	case ModeDisabled:
		return "disabled"
	default:
		return "enabled"
	}
}

// ParseProcessingMode parses the configuration spelling of a mode.
func ParseProcessingMode(s string) (ProcessingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "enabled":
		return ModeEnabled, nil
	case "enabled_verbose", "verbose":
		return ModeEnabledVerbose, nil
	case "disabled":
		return ModeDisabled, nil
	}
	return ModeEnabled, fmt.Errorf("unknown processing mode %q", s)
}

// SQLBackend selects the variant of backend-specific predefined copybooks.
type SQLBackend string

const (
	DB2Server     SQLBackend = "DB2_SERVER"
	DatacomServer SQLBackend = "DATACOM_SERVER"
)

// CopybookConfig carries per-analysis resolution settings.
type CopybookConfig struct {
	Mode       ProcessingMode
	SQLBackend SQLBackend
	Dialects   []string
}

// DialectEnabled reports whether the named dialect extension is active.
func (c CopybookConfig) DialectEnabled(dialect string) bool {
	return slices.ContainsFunc(c.Dialects, func(d string) bool {
		return strings.EqualFold(d, dialect)
	})
}

// AnalysisFinishedEvent is emitted once a document analysis completes. It
// drives the download-request flow for copybooks that could not be resolved.
type AnalysisFinishedEvent struct {
	DocumentURI  string
	CopybookURIs []string
	Mode         ProcessingMode
}
