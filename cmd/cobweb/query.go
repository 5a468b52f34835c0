package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/cobweb"
	"github.com/jward/cobweb/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the index",
	Long:  "Run queries against an indexed workspace. All line and column numbers are 0-based.",
}

func init() {
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(diagnosticsCmd)
	queryCmd.AddCommand(variablesCmd)
	queryCmd.AddCommand(copybooksCmd)
	queryCmd.AddCommand(missingCmd)
	queryCmd.AddCommand(definitionCmd)
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed programs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("files", func(q *cobweb.QueryBuilder) (any, error) {
			files, err := q.Files()
			if err != nil {
				return nil, err
			}
			out := make([]CLIFile, 0, len(files))
			for _, f := range files {
				out = append(out, CLIFile{
					ID:          f.ID,
					Path:        f.Path,
					ProgramID:   f.ProgramID,
					LineCount:   f.LineCount,
					LastIndexed: f.LastIndexed.Format(time.RFC3339),
				})
			}
			return out, nil
		})
	},
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <file>",
	Short: "Diagnostics recorded for a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileQuery("diagnostics", args[0], func(q *cobweb.QueryBuilder, path string) (any, error) {
			diags, err := q.Diagnostics(path)
			if err != nil {
				return nil, err
			}
			out := make([]CLIDiagnostic, 0, len(diags))
			for _, d := range diags {
				out = append(out, CLIDiagnostic{
					Code:        d.Code,
					Severity:    severityName(d.Severity),
					Message:     d.Message,
					CLILocation: spanToCLI(d.Span),
				})
			}
			return out, nil
		})
	},
}

var variablesCmd = &cobra.Command{
	Use:   "variables <file>",
	Short: "Data definitions of a program, copybook entries included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileQuery("variables", args[0], func(q *cobweb.QueryBuilder, path string) (any, error) {
			vars, err := q.Variables(path)
			if err != nil {
				return nil, err
			}
			out := make([]CLIVariable, 0, len(vars))
			for _, v := range vars {
				out = append(out, CLIVariable{
					ID:          v.ID,
					ParentID:    v.ParentID,
					Name:        v.Name,
					Level:       v.Level,
					Kind:        v.Kind,
					Picture:     v.Picture,
					Usage:       v.Usage,
					CLILocation: spanToCLI(v.Span),
				})
			}
			return out, nil
		})
	},
}

var copybooksCmd = &cobra.Command{
	Use:   "copybooks <file>",
	Short: "COPY statements of a program and how they resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileQuery("copybooks", args[0], func(q *cobweb.QueryBuilder, path string) (any, error) {
			usages, err := q.CopybookUsages(path)
			if err != nil {
				return nil, err
			}
			out := make([]CLICopybook, 0, len(usages))
			for _, u := range usages {
				out = append(out, CLICopybook{
					Name:        u.Name,
					Qualifier:   u.Qualifier,
					Dialect:     u.Dialect,
					State:       u.State,
					CopybookURI: u.CopybookURI,
					CLILocation: spanToCLI(u.Span),
				})
			}
			return out, nil
		})
	},
}

var missingCmd = &cobra.Command{
	Use:   "missing",
	Short: "Copybooks no indexed program could resolve",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("missing", func(q *cobweb.QueryBuilder) (any, error) {
			missing, err := q.MissingCopybooks()
			if err != nil {
				return nil, err
			}
			out := make([]CLIMissingCopybook, 0, len(missing))
			for _, m := range missing {
				out = append(out, CLIMissingCopybook{Name: m.Name, State: m.State, Files: m.Files})
			}
			return out, nil
		})
	},
}

var definitionCmd = &cobra.Command{
	Use:   "definition <name>",
	Short: "Where a data name is defined",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("definition", func(q *cobweb.QueryBuilder) (any, error) {
			locs, err := q.DefinitionsOf(args[0])
			if err != nil {
				return nil, err
			}
			out := make([]CLILocation, 0, len(locs))
			for _, l := range locs {
				out = append(out, CLILocation(l))
			}
			return out, nil
		})
	},
}

// --- Helpers ---

// openStore opens the Store from the --db flag path (or the configured one).
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'cobweb index' first)", dbPath)
	}
	return store.NewStore(dbPath)
}

// withQuery opens the index, runs fn and prints its result.
func withQuery(command string, fn func(q *cobweb.QueryBuilder) (any, error)) error {
	s, err := openStore()
	if err != nil {
		return outputError(command, err)
	}
	defer s.Close()

	results, err := fn(cobweb.NewQueryBuilder(s))
	if err != nil {
		return outputError(command, err)
	}
	return outputResult(CLIResult{Command: command, Results: results})
}

// withFileQuery is withQuery for commands taking a program path.
func withFileQuery(command, file string, fn func(q *cobweb.QueryBuilder, path string) (any, error)) error {
	path, err := resolveFilePath(file)
	if err != nil {
		return outputError(command, err)
	}
	return withQuery(command, func(q *cobweb.QueryBuilder) (any, error) {
		return fn(q, path)
	})
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

func spanToCLI(s store.Span) CLILocation {
	return CLILocation{URI: s.URI, StartLine: s.StartLine, StartCol: s.StartCol, EndLine: s.EndLine, EndCol: s.EndCol}
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
