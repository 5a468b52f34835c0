package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	protocol "go.lsp.dev/protocol"

	"github.com/jward/cobweb"
	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/workspace"
)

var flagMode string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze one COBOL program",
	Long:  "Expands copybooks, builds the data hierarchy and prints diagnostics, variables and copybook usages. Line and column numbers are 0-based.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&flagMode, "mode", "", "copybook processing mode: enabled|enabled_verbose|disabled (default: configured)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("analyze", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return outputError("analyze", fmt.Errorf("reading %s: %w", path, err))
	}

	engine, mode, err := newEngine("", flagMode)
	if err != nil {
		return outputError("analyze", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	doc, err := engine.Analyze(ctx, workspace.PathToURI(path), string(content), mode)
	if errors.Is(err, cobweb.ErrCancelled) {
		return outputError("analyze", errors.New("analysis interrupted"))
	}
	if err != nil {
		return outputError("analyze", err)
	}
	return outputResult(CLIResult{Command: "analyze", Results: analysisToCLI(doc)})
}

func analysisToCLI(doc *cobweb.ExtendedDocument) CLIAnalysis {
	out := CLIAnalysis{
		URI:         doc.URI,
		Diagnostics: make([]CLIDiagnostic, 0, len(doc.Errors)),
		Variables:   make([]CLIVariable, 0, len(doc.Nodes)),
		Copybooks:   make([]CLICopybook, 0, len(doc.Copybooks)),
	}
	for _, d := range doc.Errors {
		out.Diagnostics = append(out.Diagnostics, CLIDiagnostic{
			Code:        string(d.Code),
			Severity:    severityName(int(d.Severity)),
			Message:     d.Message,
			CLILocation: localityToCLI(d.Locality),
		})
	}
	for _, n := range doc.Nodes {
		out.Variables = append(out.Variables, nodeToCLI(n))
	}
	for _, u := range doc.Copybooks {
		out.Copybooks = append(out.Copybooks, CLICopybook{
			Name:        u.Name.DisplayName(),
			Qualifier:   u.Name.Qualifier,
			Dialect:     u.Name.Dialect,
			State:       u.State.String(),
			CopybookURI: u.URI,
			CLILocation: localityToCLI(u.Locality),
		})
	}
	return out
}

func nodeToCLI(n *model.VariableNode) CLIVariable {
	v := CLIVariable{
		Name:        n.Name,
		Level:       n.Level,
		Kind:        n.Kind(),
		CLILocation: localityToCLI(n.NameLocality),
	}
	if len(n.Pictures) > 0 {
		v.Picture = n.Pictures[0]
	}
	if len(n.Usages) > 0 {
		v.Usage = string(n.Usages[0])
	}
	for _, c := range n.Children {
		v.Children = append(v.Children, nodeToCLI(c))
	}
	return v
}

func localityToCLI(l model.Locality) CLILocation {
	return CLILocation{
		URI:       l.URI,
		StartLine: int(l.Range.Start.Line),
		StartCol:  int(l.Range.Start.Character),
		EndLine:   int(l.Range.End.Line),
		EndCol:    int(l.Range.End.Character),
	}
}

func severityName(s int) string {
	switch protocol.DiagnosticSeverity(s) {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityWarning:
		return "warning"
	case protocol.DiagnosticSeverityInformation:
		return "info"
	case protocol.DiagnosticSeverityHint:
		return "hint"
	}
	return "unknown"
}
