package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatDiagnosticsText formats diagnostics as "uri:line:col: severity: message" lines.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n", d.URI, d.StartLine, d.StartCol, d.Severity, d.Message, d.Code)
	}
}

// formatVariablesText formats variables as aligned columns, indenting
// nested analyze output by depth.
func formatVariablesText(w io.Writer, vars []CLIVariable) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tNAME\tKIND\tPICTURE\tUSAGE\tLOCATION")
	var write func(vs []CLIVariable, depth int)
	write = func(vs []CLIVariable, depth int) {
		for _, v := range vs {
			fmt.Fprintf(tw, "%s%02d\t%s\t%s\t%s\t%s\t%s:%d:%d\n",
				strings.Repeat("  ", depth), v.Level, v.Name, v.Kind, v.Picture, v.Usage, v.URI, v.StartLine, v.StartCol)
			write(v.Children, depth+1)
		}
	}
	write(vars, 0)
	tw.Flush()
}

// formatCopybooksText formats copybook usages as aligned columns.
func formatCopybooksText(w io.Writer, usages []CLICopybook) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDIALECT\tSTATE\tCOPYBOOK\tLOCATION")
	for _, u := range usages {
		name := u.Name
		if u.Qualifier != "" {
			name += " " + u.Qualifier
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s:%d:%d\n", name, u.Dialect, u.State, u.CopybookURI, u.URI, u.StartLine, u.StartCol)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROGRAM\tLINES\tPATH")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", f.ID, f.ProgramID, f.LineCount, f.Path)
	}
	tw.Flush()
}

func formatMissingText(w io.Writer, missing []CLIMissingCopybook) {
	for _, m := range missing {
		fmt.Fprintf(w, "%s (%s): %s\n", m.Name, m.State, strings.Join(m.Files, ", "))
	}
}

func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, l := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", l.URI, l.StartLine, l.StartCol)
	}
}

// formatAnalysisText prints the sections of an analysis one after another.
func formatAnalysisText(w io.Writer, a CLIAnalysis) {
	fmt.Fprintf(w, "Program: %s\n\n", a.URI)
	fmt.Fprintf(w, "Diagnostics (%d):\n", len(a.Diagnostics))
	formatDiagnosticsText(w, a.Diagnostics)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Variables:")
	formatVariablesText(w, a.Variables)
	if len(a.Copybooks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Copybooks:")
		formatCopybooksText(w, a.Copybooks)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIAnalysis:
		formatAnalysisText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLIVariable:
		formatVariablesText(w, v)
	case []CLICopybook:
		formatCopybooksText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case []CLIMissingCopybook:
		formatMissingText(w, v)
	case []CLILocation:
		formatLocationsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
