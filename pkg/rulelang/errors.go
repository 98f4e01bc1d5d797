package rulelang

import (
	"fmt"
	"strings"

	goerrors "gopkg.in/src-d/go-errors.v1"
)

// Error kinds (spec §7). Each kind formats a human-readable message
// including the offending rule name and a truncated snippet of the
// offending text, per spec's "user-visible failure" contract.
var (
	// ErrParse is returned for malformed RuleLang input: unbalanced
	// brackets, a rule missing its "->", an unterminated quote, and so on.
	ErrParse = goerrors.NewKind("rulelang: parse error in rule %q: %s (near %q)")

	// ErrUnknownBuiltin is returned when strict mode is enabled and a body
	// atom names a built-in outside the fixed set in builtins.go. In the
	// default lenient mode the atom is silently dropped instead (a
	// historical quirk inherited from the original Python compiler, see
	// spec §9); strict mode surfaces it as this error.
	ErrUnknownBuiltin = goerrors.NewKind("rulelang: unknown built-in %q in rule %q (near %q)")

	// ErrUnboundHeadVariable is returned when a head triple pattern
	// references a variable with no positive body source.
	ErrUnboundHeadVariable = goerrors.NewKind("rulelang: variable %q in head of rule %q has no body source (near %q)")
)

// snippet truncates s to at most n characters for inclusion in an error
// message (spec §7: "a short snippet (≤100 chars) of the offending text").
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func parseErrorf(ruleName, near, format string, args ...interface{}) error {
	return ErrParse.New(ruleName, fmt.Sprintf(format, args...), snippet(near, 100))
}
