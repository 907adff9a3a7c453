// Package internal runs the bounds rules over Go source files.
//
// Key components:
//
// Engine: parses and type-checks a file, runs every enabled rule over it in
// parallel, and drops issues silenced by //nolint comments. Results can be
// kept in a Cache keyed by file content, and Watch re-runs the engine on
// files as they change.
//
// LintRule: the contract of a rule. Rules receive a Unit, which carries
// the parsed file and its type information, and lazily runs the bounds
// walker once per file however many rules ask for it.
//
// Rules:
//
//	unproven-index       an index or slice expression whose bounds the
//	                     prover cannot establish from the facts in scope
//	redundant-condition  an if condition the facts in scope already decide
//
// Usage:
//
//	engine, err := internal.NewEngine(".", cfg.Rules, internal.WithLogger(logger))
//	if err != nil {
//	    // handle error
//	}
//	issues, err := engine.Run("path/to/file.go")
package internal
