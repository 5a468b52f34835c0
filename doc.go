// Package cobweb analyzes COBOL programs: it expands COPY statements against
// a copybook workspace, builds the data-description hierarchy, checks
// references, and reports diagnostics located in the document where each
// problem was written.
//
// # Pipeline
//
// Each analysis runs these stages:
//
//  1. Preprocess: tokenize the fixed-format source, apply REPLACE
//     directives, and splice every standard COPY (and EXEC SQL INCLUDE)
//     with the expanded text of its copybook. Copybooks are resolved
//     through a shared, concurrent cache; missing ones are reported and
//     registered for download.
//  2. Analyze: parse the divisions, build the data hierarchy (expanding
//     dialect copies such as COPY MAID in place with level remapping), and
//     report references to undefined data names.
//  3. Report: once an analysis finishes, the resolver requests downloads
//     for the copybooks it could not find.
//
// # Usage
//
//	e, err := cobweb.New("cobweb.db",
//		cobweb.WithWorkspace(&workspace.Folders{Dirs: []string{"copybooks"}}, workspace.Files{}))
//	if err != nil { ... }
//	defer e.Close()
//
//	doc, err := e.Analyze(ctx, uri, text, cobweb.ModeEnabled)
//	err = e.IndexDirectory(ctx, "path/to/project")
//	missing, err := e.Query().MissingCopybooks()
//
// # Incremental Indexing
//
// [Engine.IndexFiles] detects unchanged files via content hashing and skips
// them, unless the analysis settings changed since the last run.
package cobweb
