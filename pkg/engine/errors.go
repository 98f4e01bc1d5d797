package engine

import goerrors "gopkg.in/src-d/go-errors.v1"

// Error kinds (spec §7).
var (
	// ErrQuery wraps a failure evaluating a rule's body against the
	// store (a malformed pattern, an unsupported built-in, an
	// arithmetic type error).
	ErrQuery = goerrors.NewKind("engine: query error evaluating rule %q: %s")

	// ErrUpdate wraps a failure applying a rule's head as new quads.
	ErrUpdate = goerrors.NewKind("engine: update error applying rule %q: %s")

	// ErrSPARQLText wraps a failure parsing a bundled SPARQL CONSTRUCT or
	// UPDATE file's raw text into the shared body/head AST (sparqltext.go).
	ErrSPARQLText = goerrors.NewKind("engine: parsing SPARQL text: %s")
)
