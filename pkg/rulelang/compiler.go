package rulelang

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// StandardPrefixes are emitted at the top of every compiled query (spec
// §4.1). Frameworks may not redefine them; RuleLang has no prefix
// declaration syntax of its own.
var StandardPrefixes = map[string]string{
	"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	"xsd":  "http://www.w3.org/2001/XMLSchema#",
	"owl":  "http://www.w3.org/2002/07/owl#",
}

// CompiledRule is the SPARQL CONSTRUCT form of a parsed Rule, ready to
// hand to the store facade (component C3).
type CompiledRule struct {
	Name  string
	Query string
}

// CompileOptions controls the lenient/strict handling of unrecognized
// built-ins (spec §9 Open Question: the original Jena-derived compiler
// silently drops unknown built-in calls; a strict mode is offered here
// as an improvement, defaulting off to preserve historical behavior).
type CompileOptions struct {
	StrictBuiltins bool
}

// Compile translates a parsed Rule into a SPARQL CONSTRUCT query. Clause
// ordering within WHERE is fixed by spec §4.1: triple patterns first,
// then BIND clauses (in source order), then FILTER clauses (in source
// order), then NOT EXISTS filters for negation atoms last.
func Compile(rule *Rule, opts CompileOptions) (*CompiledRule, error) {
	var patterns, binds, filters, negations []string

	for _, atom := range rule.Body {
		switch atom.Kind {
		case AtomTriple:
			patterns = append(patterns, formatTriple(atom.Triple))

		case AtomBuiltin:
			spec, ok := builtinTable[atom.Builtin.Name]
			if !ok {
				if opts.StrictBuiltins {
					return nil, ErrUnknownBuiltin.New(atom.Builtin.Name, rule.Name, snippet(rule.Source, 100))
				}
				continue // lenient mode: drop silently, matching historical behavior
			}
			frag, err := spec.compile(atom.Builtin.Args)
			if err != nil {
				return nil, parseErrorf(rule.Name, rule.Source, "%s", err.Error())
			}
			if spec.class == classBinder {
				binds = append(binds, frag)
			} else {
				filters = append(filters, frag)
			}

		case AtomNegation:
			negations = append(negations, formatNegation(atom.Negation))
		}
	}

	constructBlock := formatConstructHead(rule.Head)

	var where strings.Builder
	where.WriteString("WHERE {\n")
	for _, p := range patterns {
		fmt.Fprintf(&where, "  %s\n", p)
	}
	for _, b := range binds {
		fmt.Fprintf(&where, "  %s .\n", b)
	}
	for _, f := range filters {
		fmt.Fprintf(&where, "  %s\n", f)
	}
	for _, n := range negations {
		fmt.Fprintf(&where, "  %s\n", n)
	}
	where.WriteString("}")

	var query strings.Builder
	for _, prefix := range sortedPrefixNames() {
		fmt.Fprintf(&query, "PREFIX %s: <%s>\n", prefix, StandardPrefixes[prefix])
	}
	query.WriteString("CONSTRUCT {\n")
	query.WriteString(constructBlock)
	query.WriteString("\n}\n")
	query.WriteString(where.String())

	return &CompiledRule{Name: rule.Name, Query: query.String()}, nil
}

// CompileAll compiles every rule in rules, aggregating per-rule failures
// into a single hashicorp/go-multierror so that one malformed rule in a
// large file does not hide failures in the rest (spec §7: "a single rule
// file's errors are reported together, not one at a time").
func CompileAll(rules []*Rule, opts CompileOptions) ([]*CompiledRule, error) {
	var compiled []*CompiledRule
	var result *multierror.Error

	for _, r := range rules {
		cr, err := Compile(r, opts)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		compiled = append(compiled, cr)
	}

	if result != nil {
		return compiled, result.ErrorOrNil()
	}
	return compiled, nil
}

func formatTriple(tp TriplePattern) string {
	return fmt.Sprintf("%s %s %s .", tp.Subject.Text, tp.Predicate.Text, tp.Object.Text)
}

func formatConstructHead(head []TriplePattern) string {
	lines := make([]string, len(head))
	for i, tp := range head {
		lines[i] = "  " + formatTriple(tp)
	}
	return strings.Join(lines, "\n")
}

// formatNegation renders a noValue atom as a SPARQL NOT EXISTS filter.
func formatNegation(n Negation) string {
	return fmt.Sprintf("FILTER NOT EXISTS { %s %s %s }", n.Subject.Text, n.Predicate.Text, n.Object.Text)
}

func sortedPrefixNames() []string {
	// Fixed, deterministic order rather than map iteration order, so
	// repeated compilation of the same rule is byte-for-byte identical
	// (spec §8 determinism property).
	return []string{"rdf", "rdfs", "xsd", "owl"}
}
